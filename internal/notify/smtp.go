package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/botio91514/gym-backend/internal/retry"
	"github.com/wneessen/go-mail"
)

type SMTPConfig struct {
	Host        string
	Port        int
	Username    string
	Password    string
	FromAddress string
	FromName    string
	Timeout     time.Duration
}

type smtpTransport struct {
	client *mail.Client
	cfg    SMTPConfig
}

// SMTPTransportFactory dials a fresh client per delivery attempt.
func SMTPTransportFactory(cfg SMTPConfig) TransportFactory {
	return func(ctx context.Context) (Transport, error) {
		opts := []mail.Option{
			mail.WithPort(cfg.Port),
			mail.WithTLSPortPolicy(mail.TLSOpportunistic),
		}
		if cfg.Timeout > 0 {
			opts = append(opts, mail.WithTimeout(cfg.Timeout))
		}
		if cfg.Username != "" {
			opts = append(opts,
				mail.WithSMTPAuth(mail.SMTPAuthPlain),
				mail.WithUsername(cfg.Username),
				mail.WithPassword(cfg.Password),
			)
		}

		client, err := mail.NewClient(cfg.Host, opts...)
		if err != nil {
			return nil, fmt.Errorf("smtp client: %w", err)
		}
		return &smtpTransport{client: client, cfg: cfg}, nil
	}
}

func (t *smtpTransport) Deliver(ctx context.Context, env Envelope) (string, error) {
	msg := mail.NewMsg()
	if err := msg.FromFormat(t.cfg.FromName, t.cfg.FromAddress); err != nil {
		return "", retry.Permanent(fmt.Errorf("from address: %w", err))
	}
	if err := msg.AddToFormat(env.To.Name, env.To.Email); err != nil {
		return "", retry.Permanent(fmt.Errorf("%w: %v", ErrInvalidRecipient, err))
	}
	msg.Subject(env.Subject)
	msg.SetBodyString(mail.TypeTextHTML, env.HTML)
	msg.SetMessageID()

	if err := t.client.DialAndSendWithContext(ctx, msg); err != nil {
		return "", classifySMTPError(err)
	}

	var id string
	if ids := msg.GetGenHeader(mail.HeaderMessageID); len(ids) > 0 {
		id = strings.Trim(ids[0], "<>")
	}
	return id, nil
}

func (t *smtpTransport) Close() error {
	err := t.client.Close()
	if err != nil && strings.Contains(err.Error(), "not connected") {
		return nil
	}
	return err
}

// classifySMTPError marks a definitive recipient rejection as permanent;
// everything else may be retried.
func classifySMTPError(err error) error {
	var sendErr *mail.SendError
	if errors.As(err, &sendErr) && sendErr.Reason == mail.ErrSMTPRcptTo && !sendErr.IsTemp() {
		return retry.Permanent(err)
	}
	return err
}
