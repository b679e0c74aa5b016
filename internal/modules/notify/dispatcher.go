package notify

import (
	"context"

	"github.com/mihir-logicrays/drive-it/internal/modules/matching"
)

// Dispatcher fans engine notifications out to the push and mail channels.
// Either channel may be nil; calls on it then return ErrDisabled.
type Dispatcher struct {
	push *Push
	mail *Mailer
}

func NewDispatcher(push *Push, mail *Mailer) *Dispatcher {
	return &Dispatcher{push: push, mail: mail}
}

func (d *Dispatcher) FinalStop(ctx context.Context, token string, phase matching.Phase, a matching.Assignment) error {
	return d.push.FinalStop(ctx, token, phase, a)
}

func (d *Dispatcher) UnmatchedAlert(ctx context.Context, a matching.Alert) error {
	return d.mail.UnmatchedAlert(ctx, a)
}
