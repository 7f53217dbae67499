package notifier

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/segyhp/collections-engine/internal/logger"
)

const (
	ChannelEmail = "email"
	ChannelLog   = "log"
)

// Message is one outbound notice or digest
type Message struct {
	ToEmail   string
	ToName    string
	Subject   string
	PlainText string
	HTML      string
}

// Notifier delivers messages through one channel
type Notifier interface {
	Channel() string
	Send(ctx context.Context, msg Message) error
}

type SendGridNotifier struct {
	client *sendgrid.Client
	from   *mail.Email
}

func NewSendGridNotifier(apiKey, fromEmail, fromName string) *SendGridNotifier {
	return &SendGridNotifier{
		client: sendgrid.NewSendClient(apiKey),
		from:   mail.NewEmail(fromName, fromEmail),
	}
}

func (n *SendGridNotifier) Channel() string {
	return ChannelEmail
}

func (n *SendGridNotifier) Send(ctx context.Context, msg Message) error {
	if msg.ToEmail == "" {
		return fmt.Errorf("recipient email is required")
	}

	recipient := mail.NewEmail(msg.ToName, msg.ToEmail)
	message := mail.NewSingleEmail(n.from, msg.Subject, recipient, msg.PlainText, msg.HTML)

	response, err := n.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("sendgrid error: status %d, body: %s", response.StatusCode, response.Body)
	}

	return nil
}

// LogNotifier records messages in the log instead of delivering them. It is
// used when no SendGrid key is configured.
type LogNotifier struct{}

func (LogNotifier) Channel() string {
	return ChannelLog
}

func (LogNotifier) Send(ctx context.Context, msg Message) error {
	logger.InfoContext(ctx, "notice not delivered, no email channel configured",
		"to", msg.ToEmail,
		"subject", msg.Subject,
	)
	return nil
}

// New picks SendGrid when an API key is present and falls back to logging
func New(apiKey, fromEmail, fromName string) Notifier {
	if apiKey == "" {
		return LogNotifier{}
	}
	return NewSendGridNotifier(apiKey, fromEmail, fromName)
}
