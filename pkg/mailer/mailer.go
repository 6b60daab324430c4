package mailer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/angelmondragon/fulfillment-backend/pkg/config"
	"github.com/angelmondragon/fulfillment-backend/pkg/logger"
)

const defaultTimeout = 15 * time.Second

var (
	errHostRequired      = errors.New("smtp host is required")
	errRecipientRequired = errors.New("recipient address is required")
)

// Message is one plain-text email.
type Message struct {
	To      string
	Subject string
	Body    string
}

type dialer interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// Client sends transactional email over SMTP.
type Client struct {
	dialer dialer
	from   string
}

// New builds an SMTP client. Authentication is only negotiated when a username
// is configured.
func New(ctx context.Context, cfg config.SMTPConfig, logg *logger.Logger) (*Client, error) {
	host := strings.TrimSpace(cfg.Host)
	if host == "" {
		return nil, errHostRequired
	}
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
		mail.WithTimeout(defaultTimeout),
	}
	if user := strings.TrimSpace(cfg.Username); user != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(user),
			mail.WithPassword(cfg.Password),
		)
	}
	client, err := mail.NewClient(host, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating smtp client: %w", err)
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "smtp_host", host), "smtp client initialized")
	}
	return newClient(client, cfg.From), nil
}

func newClient(d dialer, from string) *Client {
	return &Client{dialer: d, from: strings.TrimSpace(from)}
}

// Send delivers msg, honouring ctx for the SMTP dial and exchange.
func (c *Client) Send(ctx context.Context, msg Message) error {
	if c == nil || c.dialer == nil {
		return errors.New("smtp client not initialized")
	}
	built, err := c.build(msg)
	if err != nil {
		return err
	}
	if err := c.dialer.DialAndSendWithContext(ctx, built); err != nil {
		return fmt.Errorf("sending mail to %s: %w", msg.To, err)
	}
	return nil
}

func (c *Client) build(msg Message) (*mail.Msg, error) {
	to := strings.TrimSpace(msg.To)
	if to == "" {
		return nil, errRecipientRequired
	}
	m := mail.NewMsg()
	if err := m.From(c.from); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", c.from, err)
	}
	if err := m.To(to); err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", to, err)
	}
	m.Subject(msg.Subject)
	m.SetDate()
	m.SetMessageID()
	m.SetBodyString(mail.TypeTextPlain, msg.Body)
	return m, nil
}
