package scheduler

import (
	"fmt"

	"gopkg.in/gomail.v2"

	"meta_report/config"
)

// SMTPTransport là Transport implementation dùng gomail trên SMTP config của hệ thống.
// Không retry: retry là trách nhiệm của tầng gửi (ngoài phạm vi aggregator).
type SMTPTransport struct {
	host     string
	port     int
	username string
	password string
	from     string
	fromName string
}

// NewSMTPTransport tạo transport từ config SMTP.
func NewSMTPTransport(c *config.Configuration) *SMTPTransport {
	return &SMTPTransport{
		host:     c.SMTPHost,
		port:     c.SMTPPort,
		username: c.SMTPUsername,
		password: c.SMTPPassword,
		from:     c.SMTPFrom,
		fromName: c.SMTPFromName,
	}
}

// SendEmail gửi một email với danh sách file đính kèm (path absolute).
func (t *SMTPTransport) SendEmail(recipients []string, subject, textBody, htmlBody string, attachments []Attachment) error {
	if len(recipients) == 0 {
		return fmt.Errorf("recipients is empty")
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", fmt.Sprintf("%s <%s>", t.fromName, t.from))
	msg.SetHeader("To", recipients...)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", textBody)
	if htmlBody != "" {
		msg.AddAlternative("text/html", htmlBody)
	}
	for _, a := range attachments {
		msg.Attach(a.Path, gomail.Rename(a.Filename))
	}

	dialer := gomail.NewDialer(t.host, t.port, t.username, t.password)
	return dialer.DialAndSend(msg)
}
