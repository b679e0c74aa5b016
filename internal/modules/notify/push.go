// Package notify delivers rider push messages over FCM and operator alert
// mails over SMTP.
package notify

import (
	"context"
	"errors"
	"fmt"

	"firebase.google.com/go/v4/messaging"
	"github.com/sirupsen/logrus"

	"github.com/mihir-logicrays/drive-it/internal/logger"
	"github.com/mihir-logicrays/drive-it/internal/modules/matching"
)

var (
	ErrEmptyToken = errors.New("empty device token")
	ErrDisabled   = errors.New("notification channel not configured")
)

const (
	pushTitle = "DRIVE-IT"
	pushBody  = "Final stop notification."
)

// Sender is the subset of *messaging.Client used here.
type Sender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// Push sends FCM messages to rider devices.
type Push struct {
	client Sender
	log    *logrus.Entry
}

func NewPush(client Sender) *Push {
	return &Push{client: client, log: logger.For("notify")}
}

// FinalStop tells a rider which stop they were assigned for a phase.
func (p *Push) FinalStop(ctx context.Context, token string, phase matching.Phase, a matching.Assignment) error {
	if p == nil || p.client == nil {
		return ErrDisabled
	}
	if token == "" {
		return fmt.Errorf("%w for user %s", ErrEmptyToken, a.PassengerID)
	}

	messageID, err := p.client.Send(ctx, finalStopMessage(token, phase, a))
	if err != nil {
		return fmt.Errorf("sending FCM to user %s: %w", a.PassengerID, err)
	}

	p.log.WithFields(logrus.Fields{
		"route_id":   a.RouteID,
		"user_id":    a.PassengerID,
		"phase":      phase,
		"message_id": messageID,
	}).Debug("final stop push sent")
	return nil
}

func finalStopMessage(token string, phase matching.Phase, a matching.Assignment) *messaging.Message {
	return &messaging.Message{
		Token: token,
		Data: map[string]string{
			"type":     "final_stop",
			"route_id": string(a.RouteID),
			"stop_id":  string(a.StopID),
			"phase":    string(phase),
		},
		Notification: &messaging.Notification{
			Title: pushTitle,
			Body:  pushBody,
		},
		Android: &messaging.AndroidConfig{
			Priority: "high",
		},
	}
}
