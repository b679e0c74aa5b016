// README: Route service runs the path selection engine over due routes and applies its side effects.
package route

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/mihir-logicrays/drive-it/internal/config"
	"github.com/mihir-logicrays/drive-it/internal/logger"
	"github.com/mihir-logicrays/drive-it/internal/metrics"
	"github.com/mihir-logicrays/drive-it/internal/modules/matching"
	"github.com/mihir-logicrays/drive-it/internal/types"
)

// Source reads due routes and their per-phase planner output.
type Source interface {
	DueRoutes(ctx context.Context, before time.Time) ([]Route, error)
	PhaseCatalog(ctx context.Context, routeID types.ID, phase matching.Phase) (Catalog, error)
}

// Writer persists assignments and route completion. SetFinalPath also marks
// the route configured; SetPhaseDone records a phase without touching the
// path.
type Writer interface {
	SetPassengerStop(ctx context.Context, routeID, userID types.ID, phase matching.Phase, stopID types.ID) error
	SetFinalPath(ctx context.Context, routeID types.ID, path matching.FinalPath, done PhaseFlags) error
	SetPhaseDone(ctx context.Context, routeID types.ID, phase matching.Phase) error
}

// Notifier delivers rider pushes and operator alerts.
type Notifier interface {
	AlertSender
	FinalStop(ctx context.Context, token string, phase matching.Phase, a matching.Assignment) error
}

// Claimer guards a route against concurrent processing.
type Claimer interface {
	Claim(ctx context.Context, routeID types.ID) (owner string, ok bool, err error)
	Release(ctx context.Context, routeID types.ID, owner string) error
}

// Service configures due routes and applies the side effects of each plan.
type Service struct {
	source   Source
	writer   Writer
	notifier Notifier
	claimer  Claimer
	monitor  *Monitor
	metrics  *metrics.Engine
	cfg      config.PathsConfig
	rules    matching.Rules
	log      *logrus.Entry
}

// NewService applies the configured rule overrides on top of the default
// rules. A nil claimer processes every route unguarded.
func NewService(source Source, writer Writer, notifier Notifier, claimer Claimer, m *metrics.Engine, cfg config.PathsConfig) *Service {
	if claimer == nil {
		claimer = NoopClaimer{}
	}
	rules := matching.DefaultRules()
	if cfg.CaptureRadiusMeters > 0 {
		rules.CaptureRadiusMeters = cfg.CaptureRadiusMeters
	}
	if cfg.MaxNearStops > 0 {
		rules.MaxNearStops = cfg.MaxNearStops
	}
	if cfg.UnmatchedThreshold > 0 {
		rules.UnmatchedThreshold = cfg.UnmatchedThreshold
	}
	if cfg.Lookahead <= 0 {
		cfg.Lookahead = time.Hour
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = 15 * time.Second
	}
	return &Service{
		source:   source,
		writer:   writer,
		notifier: notifier,
		claimer:  claimer,
		monitor:  NewMonitor(notifier, m, cfg.NotifyTimeout),
		metrics:  m,
		cfg:      cfg,
		rules:    rules,
		log:      logger.For("route"),
	}
}

// ProcessDue loads routes departing within the lookahead window of now and
// processes each of them. It returns once every route has finished; the
// work is detached from ctx cancellation so a dropped caller cannot leave a
// route half written.
func (s *Service) ProcessDue(ctx context.Context, now time.Time) ([]Route, Summary, error) {
	routes, err := s.source.DueRoutes(ctx, now.Add(s.cfg.Lookahead))
	if err != nil {
		return nil, Summary{}, fmt.Errorf("%w: %w", ErrRetrieval, err)
	}

	summary := Summary{Due: len(routes)}
	if len(routes) == 0 {
		return routes, summary, nil
	}

	work := context.WithoutCancel(ctx)
	results := make([]RouteResult, len(routes))
	var g errgroup.Group
	g.SetLimit(limit(s.cfg.RouteConcurrency))
	for i := range routes {
		g.Go(func() error {
			results[i] = s.ProcessRoute(work, routes[i])
			return nil
		})
	}
	_ = g.Wait()

	for _, res := range results {
		summary.add(res)
	}
	s.log.WithFields(logrus.Fields{
		"due":        summary.Due,
		"configured": summary.Configured,
		"skipped":    summary.Skipped,
		"failed":     summary.Failed,
	}).Info("due routes processed")
	return routes, summary, nil
}

// ProcessRoute runs pickup then dropoff for one route and writes the merged
// final path. The phases are independent: a failed phase still lets the
// other one write its stops. The path is written only when pickup produced
// one, together with the configured flag.
func (s *Service) ProcessRoute(ctx context.Context, r Route) (res RouteResult) {
	start := time.Now()
	res.RouteID = r.ID
	log := s.log.WithField("route_id", r.ID)
	defer func() {
		if res.Err != nil {
			log.WithError(res.Err).Error("route processing failed")
		}
		s.metrics.RouteProcessed(res.Outcome, time.Since(start))
	}()

	owner, ok, err := s.claimer.Claim(ctx, r.ID)
	switch {
	case err != nil:
		s.metrics.Failure("claim")
		log.WithError(err).Warn("route claim unavailable, processing unguarded")
	case !ok:
		log.Info("route claimed by another worker, skipping")
		res.Outcome = OutcomeSkipped
		return res
	default:
		defer func() {
			if err := s.claimer.Release(ctx, r.ID, owner); err != nil {
				log.WithError(err).Warn("route claim release failed")
			}
		}()
	}

	paths := map[matching.Phase]matching.FinalPath{}
	var errs []error
	for _, phase := range matching.Phases {
		pr, err := s.ProcessPhase(ctx, r, phase)
		res.Phases = append(res.Phases, pr)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s phase: %w", phase, err))
			continue
		}
		paths[phase] = pr.Plan.Path
	}
	res.Err = errors.Join(errs...)

	done := PhaseFlags{
		Pickup:  len(paths[matching.PhasePickup]) > 0,
		Dropoff: len(paths[matching.PhaseDropoff]) > 0,
	}
	if !done.Pickup && !done.Dropoff {
		res.Outcome = OutcomeEmpty
		if res.Err != nil {
			res.Outcome = OutcomeFailed
		}
		return res
	}

	// A final path is only ever stored on a configured route, and pickup
	// decides that. Dropoff alone is recorded and the route stays due.
	if !done.Pickup {
		if err := s.writer.SetPhaseDone(ctx, r.ID, matching.PhaseDropoff); err != nil {
			s.metrics.Failure("path_write")
			res.Outcome = OutcomeFailed
			res.Err = errors.Join(res.Err, fmt.Errorf("recording dropoff phase: %w", err))
			return res
		}
		res.Outcome = OutcomePartial
		log.Info("dropoff recorded, pickup pending")
		return res
	}

	merged := matching.MergePhases(paths[matching.PhasePickup], paths[matching.PhaseDropoff])
	if err := s.writer.SetFinalPath(ctx, r.ID, merged, done); err != nil {
		s.metrics.Failure("path_write")
		res.Outcome = OutcomeFailed
		res.Err = errors.Join(res.Err, fmt.Errorf("writing final path: %w", err))
		return res
	}

	res.Outcome = OutcomeConfigured
	if res.Err != nil {
		res.Outcome = OutcomePartial
	}
	log.WithFields(logrus.Fields{
		"stops":   len(merged),
		"outcome": res.Outcome,
	}).Info("final path written")
	return res
}

// ProcessPhase plans one phase and applies its side effects: the alert,
// then per rider the stop write and the push. A failure for one rider is
// logged and counted without stopping the others.
func (s *Service) ProcessPhase(ctx context.Context, r Route, phase matching.Phase) (PhaseResult, error) {
	res := PhaseResult{Phase: phase}
	log := s.log.WithFields(logrus.Fields{"route_id": r.ID, "phase": phase})

	cat, err := s.source.PhaseCatalog(ctx, r.ID, phase)
	if err != nil {
		s.metrics.PhaseProcessed(string(phase), OutcomeFailed)
		return res, fmt.Errorf("%w: %w", ErrCatalog, err)
	}

	plan, err := matching.Plan(matching.PlanInput{
		RouteID:    r.ID,
		Phase:      phase,
		Fence:      r.Fence(phase),
		Variants:   cat.Variants,
		Stops:      cat.Stops,
		Passengers: r.Passengers,
		Rules:      s.rules,
	})
	if err != nil {
		s.metrics.PhaseProcessed(string(phase), OutcomeFailed)
		return res, err
	}
	res.Plan = plan
	if plan.Empty {
		log.Debug("no path variant or stops, phase skipped")
		s.metrics.PhaseProcessed(string(phase), OutcomeEmpty)
		return res, nil
	}

	log.WithFields(logrus.Fields{
		"variant_id": plan.VariantID,
		"scored":     len(plan.Candidates),
		"selected":   plan.SelectedIndex,
		"counts":     plan.Counts,
	}).Debug("step selected")
	res.Alerted = s.monitor.Raise(ctx, plan)

	tokens := make(map[types.ID]string, len(plan.Candidates))
	for _, c := range plan.Candidates {
		tokens[c.Passenger.UserID] = c.Passenger.PushToken
	}

	var written, notified, failures atomic.Int64
	var g errgroup.Group
	g.SetLimit(limit(s.cfg.PassengerConcurrency))
	for _, a := range plan.Assignments {
		g.Go(func() error {
			entry := log.WithField("user_id", a.PassengerID)
			s.metrics.Assignment(string(phase), a.OnSelectedPath)

			if err := s.writer.SetPassengerStop(ctx, r.ID, a.PassengerID, phase, a.StopID); err != nil {
				failures.Add(1)
				s.metrics.Failure("stop_write")
				entry.WithError(err).Error("stop assignment not written")
			} else {
				written.Add(1)
			}

			token := tokens[a.PassengerID]
			if token == "" {
				return nil
			}
			pushCtx, cancel := context.WithTimeout(ctx, s.cfg.NotifyTimeout)
			defer cancel()
			if err := s.notifier.FinalStop(pushCtx, token, phase, a); err != nil {
				s.metrics.Failure("push")
				entry.WithError(err).Warn("final stop push failed")
				return nil
			}
			notified.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	res.Written = int(written.Load())
	res.Notified = int(notified.Load())
	res.Failures = int(failures.Load())
	s.metrics.PhaseProcessed(string(phase), "selected")
	return res, nil
}

// RunScheduler processes due routes on every tick until ctx is done.
func (s *Service) RunScheduler(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if _, _, err := s.ProcessDue(ctx, now); err != nil && !errors.Is(err, context.Canceled) {
				s.log.WithError(err).Error("scheduled run failed")
			}
		}
	}
}

func limit(n int) int {
	if n <= 0 {
		return -1
	}
	return n
}
