package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/bnb-chain/verivid-hub/config"
	"github.com/bnb-chain/verivid-hub/logging"
)

// Notifier delivers a message to an address. Delivery is best effort for callers.
type Notifier interface {
	Notify(ctx context.Context, address, subject, body string) error
}

func NewNotifier(cfg *config.NotifyConfig) Notifier {
	switch cfg.NotifyType {
	case config.NotifyTypeSMTP:
		return NewSMTPNotifier(cfg)
	default:
		return &LogNotifier{}
	}
}

// LogNotifier writes messages to the log instead of sending them.
type LogNotifier struct{}

func (n *LogNotifier) Notify(_ context.Context, address, subject, body string) error {
	logging.Logger.Infof("notify %s, subject=%s, body=%s", address, subject, body)
	return nil
}

type SMTPNotifier struct {
	addr string
	from string
	auth smtp.Auth
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPNotifier(cfg *config.NotifyConfig) *SMTPNotifier {
	var auth smtp.Auth
	if cfg.SMTPUsername != "" {
		auth = smtp.PlainAuth("", cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPHost)
	}
	return &SMTPNotifier{
		addr: fmt.Sprintf("%s:%d", cfg.SMTPHost, cfg.SMTPPort),
		from: cfg.From,
		auth: auth,
		send: smtp.SendMail,
	}
}

func (n *SMTPNotifier) Notify(ctx context.Context, address, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.ContainsAny(address, "\r\n") || strings.ContainsAny(subject, "\r\n") {
		return fmt.Errorf("invalid mail header")
	}
	msg := buildMessage(n.from, address, subject, body)
	if err := n.send(n.addr, n.auth, n.from, []string{address}, msg); err != nil {
		return fmt.Errorf("failed to send mail to %s: %w", address, err)
	}
	return nil
}

func buildMessage(from, to, subject, body string) []byte {
	var sb strings.Builder
	sb.WriteString("From: " + from + "\r\n")
	sb.WriteString("To: " + to + "\r\n")
	sb.WriteString("Subject: " + subject + "\r\n")
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	sb.WriteString("\r\n")
	sb.WriteString(body)
	return []byte(sb.String())
}
