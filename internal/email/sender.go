package email

import (
	"fmt"
	"net/smtp"
	"strings"
)

type Message struct {
	Subject string
	HTML    string
	Text    string
}

type Sender interface {
	Send(to string, msg Message) error
}

// SMTPSender delivers mail through a single SMTP relay. Auth is optional so
// local Mailpit-style sinks keep working without credentials.
type SMTPSender struct {
	addr string
	host string
	from string
	auth smtp.Auth
}

func NewSMTPSender(host, port, user, pass, from string) *SMTPSender {
	host = strings.TrimSpace(host)
	port = strings.TrimSpace(port)
	from = strings.TrimSpace(from)
	if from == "" {
		from = "no-reply@terminbuddy.local"
	}

	var auth smtp.Auth
	if strings.TrimSpace(user) != "" {
		auth = smtp.PlainAuth("", strings.TrimSpace(user), pass, host)
	}

	return &SMTPSender{
		addr: fmt.Sprintf("%s:%s", host, port),
		host: host,
		from: from,
		auth: auth,
	}
}

func (s *SMTPSender) Send(to string, msg Message) error {
	raw := buildMessage(s.from, to, msg)
	return smtp.SendMail(s.addr, s.auth, s.from, []string{to}, []byte(raw))
}

func buildMessage(from, to string, msg Message) string {
	// Minimal multipart/alternative RFC 5322 message.
	const boundary = "tb-alt-4f9a1c"
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", boundary)

	fmt.Fprintf(&b, "--%s\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s\r\n", boundary, msg.Text)
	fmt.Fprintf(&b, "--%s\r\nContent-Type: text/html; charset=utf-8\r\n\r\n%s\r\n", boundary, msg.HTML)
	fmt.Fprintf(&b, "--%s--\r\n", boundary)
	return b.String()
}
