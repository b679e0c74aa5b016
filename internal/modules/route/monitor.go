package route

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mihir-logicrays/drive-it/internal/logger"
	"github.com/mihir-logicrays/drive-it/internal/metrics"
	"github.com/mihir-logicrays/drive-it/internal/modules/matching"
)

// AlertSender delivers unmatched-rate alerts to operations.
type AlertSender interface {
	UnmatchedAlert(ctx context.Context, a matching.Alert) error
}

// Monitor forwards threshold breaches found by the planner.
type Monitor struct {
	sender  AlertSender
	metrics *metrics.Engine
	timeout time.Duration
	log     *logrus.Entry
}

// NewMonitor builds a monitor whose deliveries each get at most timeout.
func NewMonitor(sender AlertSender, m *metrics.Engine, timeout time.Duration) *Monitor {
	return &Monitor{sender: sender, metrics: m, timeout: timeout, log: logger.For("monitor")}
}

// Raise sends the plan's alert, if any. It reports whether an alert was due.
// Delivery errors are logged and counted, never returned.
func (m *Monitor) Raise(ctx context.Context, plan matching.PhasePlan) bool {
	if plan.Alert == nil {
		return false
	}
	a := *plan.Alert
	m.metrics.UnmatchedAlert(string(a.Phase))

	entry := m.log.WithFields(logrus.Fields{
		"route_id":  a.RouteID,
		"phase":     a.Phase,
		"unmatched": a.UnmatchedUsersCount,
	})
	entry.Warn("unmatched rate over threshold")

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	if err := m.sender.UnmatchedAlert(ctx, a); err != nil {
		m.metrics.Failure("mail")
		entry.WithError(err).Error("unmatched alert not delivered")
	}
	return true
}
