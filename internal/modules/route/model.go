// README: Route domain: due routes with their geofences, riders, phase catalogs and processing outcomes.
package route

import (
	"errors"
	"time"

	"github.com/mihir-logicrays/drive-it/internal/modules/geo"
	"github.com/mihir-logicrays/drive-it/internal/modules/matching"
	"github.com/mihir-logicrays/drive-it/internal/types"
)

var (
	ErrRetrieval = errors.New("due route retrieval failed")
	ErrNotFound  = errors.New("route record not found")
	ErrCatalog   = errors.New("phase catalog unavailable")
	// ErrPickupPending rejects a final path for a route whose pickup phase
	// produced nothing.
	ErrPickupPending = errors.New("pickup phase not configured")
)

// Route is a scheduled trip awaiting stop configuration.
type Route struct {
	ID              types.ID
	OriginArea      *geo.Polygon
	DestinationArea *geo.Polygon
	DepartureTime   time.Time
	Configured      bool
	FinalPath       string
	Passengers      []matching.Passenger
}

// Fence returns the geofence for a phase: origin for pickup, destination
// for dropoff.
func (r Route) Fence(phase matching.Phase) matching.Fence {
	if phase.IsDropoff() {
		return r.DestinationArea
	}
	return r.OriginArea
}

// Catalog is the planner output and stop set for one route and phase.
type Catalog struct {
	Variants []matching.PathVariant
	Stops    []matching.Stop
}

// PhaseFlags records which phases produced a final path.
type PhaseFlags struct {
	Pickup  bool
	Dropoff bool
}

// Configured reports whether the route counts as configured. Pickup alone
// decides it; dropoff completion is tracked separately.
func (f PhaseFlags) Configured() bool { return f.Pickup }

// Route outcomes, also used as metric labels.
const (
	OutcomeConfigured = "configured"
	OutcomePartial    = "partial"
	OutcomeEmpty      = "empty"
	OutcomeSkipped    = "skipped"
	OutcomeFailed     = "failed"
)

// PhaseResult is what processing one phase did.
type PhaseResult struct {
	Phase    matching.Phase
	Plan     matching.PhasePlan
	Written  int
	Notified int
	Failures int
	Alerted  bool
}

// RouteResult is the outcome of processing one due route.
type RouteResult struct {
	RouteID types.ID
	Outcome string
	Phases  []PhaseResult
	Err     error
}

// Summary aggregates a batch run.
type Summary struct {
	Due        int `json:"due"`
	Configured int `json:"configured"`
	Partial    int `json:"partial"`
	Empty      int `json:"empty"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`
}

func (s *Summary) add(res RouteResult) {
	switch res.Outcome {
	case OutcomeConfigured:
		s.Configured++
	case OutcomePartial:
		s.Partial++
	case OutcomeEmpty:
		s.Empty++
	case OutcomeSkipped:
		s.Skipped++
	default:
		s.Failed++
	}
}
