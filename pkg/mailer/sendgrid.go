package mailer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

const (
	defaultHost    = "https://api.sendgrid.com"
	endpoint       = "/v3/mail/send"
	defaultTimeout = 10 * time.Second
)

// ErrNoRecipient is returned when a message has no usable recipient address.
var ErrNoRecipient = errors.New("mail recipient is required")

// Message is a plain-text e-mail.
type Message struct {
	ToName  string
	ToEmail string
	Subject string
	Text    string
}

// Mailer delivers e-mail messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// SendGridConfig configures the SendGrid mailer.
type SendGridConfig struct {
	APIKey    string
	FromName  string
	FromEmail string
	// Host overrides the API host, mainly for tests.
	Host string
	// Timeout bounds a single send. Defaults to 10s.
	Timeout time.Duration
	Logger  zerolog.Logger
}

// SendGridMailer sends messages through the SendGrid v3 API.
type SendGridMailer struct {
	key        string
	host       string
	from       *sgmail.Email
	subjPrefix string
	timeout    time.Duration
	logger     zerolog.Logger
}

// NewSendGridMailer constructs a SendGrid-backed mailer.
func NewSendGridMailer(cfg SendGridConfig) (*SendGridMailer, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("sendgrid api key is required")
	}
	if strings.TrimSpace(cfg.FromEmail) == "" {
		return nil, errors.New("sendgrid sender address is required")
	}

	host := cfg.Host
	if host == "" {
		host = defaultHost
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	prefix := ""
	if cfg.FromName != "" {
		prefix = "[" + cfg.FromName + "] "
	}

	return &SendGridMailer{
		key:        cfg.APIKey,
		host:       strings.TrimRight(host, "/"),
		from:       sgmail.NewEmail(cfg.FromName, cfg.FromEmail),
		subjPrefix: prefix,
		timeout:    timeout,
		logger:     cfg.Logger.With().Str("component", "sendgrid_mailer").Logger(),
	}, nil
}

// Send implements Mailer.
func (m *SendGridMailer) Send(ctx context.Context, msg Message) error {
	if strings.TrimSpace(msg.ToEmail) == "" {
		return ErrNoRecipient
	}

	req := sendgrid.GetRequest(m.key, endpoint, m.host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(m.prepare(msg))

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	res, err := sendgrid.MakeRequestWithContext(ctx, req)
	if err != nil {
		return fmt.Errorf("sendgrid request: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid returned status %d: %s", res.StatusCode, res.Body)
	}

	m.logger.Debug().Str("to", msg.ToEmail).Int("status", res.StatusCode).Msg("mail accepted")
	return nil
}

func (m *SendGridMailer) prepare(msg Message) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = m.subjPrefix + msg.Subject
	p.AddTos(sgmail.NewEmail(msg.ToName, msg.ToEmail))

	mail := sgmail.NewV3Mail()
	mail.SetFrom(m.from)
	mail.AddPersonalizations(p)
	mail.AddContent(sgmail.NewContent("text/plain", msg.Text))
	return mail
}
