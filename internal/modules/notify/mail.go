package notify

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/mihir-logicrays/drive-it/internal/config"
	"github.com/mihir-logicrays/drive-it/internal/modules/matching"
)

const (
	alertSubject       = "Unmatched user notification"
	defaultMailTimeout = 10 * time.Second
)

// SendFunc delivers one prepared message.
type SendFunc func(ctx context.Context, msg *mail.Msg) error

// Mailer sends operator alerts.
type Mailer struct {
	from    string
	to      []string
	timeout time.Duration
	send    SendFunc
}

// NewMailer returns nil when no SMTP host is configured.
func NewMailer(cfg config.MailConfig) (*Mailer, error) {
	if cfg.Host == "" {
		return nil, nil
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultMailTimeout
	}

	opts := []mail.Option{
		mail.WithTLSPortPolicy(mail.TLSOpportunistic),
		mail.WithPort(cfg.Port),
		mail.WithTimeout(timeout),
		mail.WithDialContextFunc(deadlineDialer(timeout)),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}
	if _, err := mail.NewClient(cfg.Host, opts...); err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}

	return &Mailer{
		from:    cfg.From,
		to:      splitRecipients(cfg.To),
		timeout: timeout,
		// A client per message; go-mail clients hold one connection each.
		send: func(ctx context.Context, msg *mail.Msg) error {
			client, err := mail.NewClient(cfg.Host, opts...)
			if err != nil {
				return err
			}
			return client.DialAndSendWithContext(ctx, msg)
		},
	}, nil
}

// UnmatchedAlert mails operations about a phase with too many riders left
// outside the selected path. It returns once ctx is done or the mail timeout
// passes, whichever comes first, even if the server stops answering.
func (m *Mailer) UnmatchedAlert(ctx context.Context, a matching.Alert) error {
	if m == nil {
		return ErrDisabled
	}
	msg, err := m.message(a)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- m.send(ctx, msg) }()
	select {
	case err = <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		return fmt.Errorf("sending alert for route %s: %w", a.RouteID, err)
	}
	return nil
}

func (m *Mailer) message(a matching.Alert) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return nil, fmt.Errorf("alert sender %q: %w", m.from, err)
	}
	if err := msg.To(m.to...); err != nil {
		return nil, fmt.Errorf("alert recipients: %w", err)
	}
	msg.Subject(alertSubject)
	msg.SetDate()
	msg.SetMessageID()
	msg.SetBodyString(mail.TypeTextPlain, alertBody(a))
	return msg, nil
}

// deadlineDialer bounds every read and write on the SMTP connection, the
// greeting included.
func deadlineDialer(timeout time.Duration) mail.DialContextFunc {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		var d net.Dialer
		conn, err := d.DialContext(ctx, network, addr)
		if err != nil {
			return nil, err
		}
		if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
			_ = conn.Close()
			return nil, err
		}
		return conn, nil
	}
}

// alertBody renders e.g. "40% unmatched for RouteId: <id> - pickup".
func alertBody(a matching.Alert) string {
	pct := strconv.FormatFloat(a.UnmatchedUsersCount, 'f', -1, 64)
	return fmt.Sprintf("%s%% unmatched for RouteId: %s - %s", pct, a.RouteID, a.Phase)
}

func splitRecipients(s string) []string {
	var out []string
	for _, r := range strings.Split(s, ",") {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}
