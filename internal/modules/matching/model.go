// README: Stop-matching domain: phases, stops, candidate path variants and per-passenger matches.
package matching

import (
	"errors"

	"github.com/mihir-logicrays/drive-it/internal/types"
)

// Phase is one half of a route: boarding at the origin or alighting at the
// destination.
type Phase string

const (
	PhasePickup  Phase = "pickup"
	PhaseDropoff Phase = "dropoff"
)

// Phases is the processing order for a route.
var Phases = []Phase{PhasePickup, PhaseDropoff}

// IsDropoff reports whether the phase works against the destination area.
func (p Phase) IsDropoff() bool { return p == PhaseDropoff }

// Valid reports whether p is a known phase.
func (p Phase) Valid() bool { return p == PhasePickup || p == PhaseDropoff }

// ErrUnknownStop means a path variant names a stop the phase does not have.
// The phase is abandoned before any write.
var ErrUnknownStop = errors.New("path references a stop missing from the catalog")

// Stop is a boarding point belonging to exactly one route and phase.
type Stop struct {
	ID       types.ID
	RouteID  types.ID
	Phase    Phase
	Location types.Point
}

// Step is one position of a path variant: a set of interchangeable stops.
type Step struct {
	StopIDs []types.ID
}

// Has reports whether id is one of the step's candidate stops.
func (s Step) Has(id types.ID) bool {
	for _, sid := range s.StopIDs {
		if sid == id {
			return true
		}
	}
	return false
}

// PathVariant is a planner-produced ordering of steps for one route and phase.
type PathVariant struct {
	ID      types.ID
	RouteID types.ID
	Phase   Phase
	Steps   []Step
}

// Passenger is a reservation on a route with the rider's desired locations.
type Passenger struct {
	UserID         types.ID
	DesiredPickup  types.Point
	DesiredDropoff types.Point
	PushToken      string
	PickupStopID   *types.ID
	DropoffStopID  *types.ID
}

// Desired returns the passenger's desired location for the phase.
func (p Passenger) Desired(phase Phase) types.Point {
	if phase.IsDropoff() {
		return p.DesiredDropoff
	}
	return p.DesiredPickup
}

// NearStop is one entry of a passenger's ranked stop shortlist.
type NearStop struct {
	PassengerID types.ID
	StopID      types.ID
	Location    types.Point
	Distance    float64 // meters from the desired location
}

// Candidate is a scored passenger: one with at least one NearStop.
type Candidate struct {
	Passenger Passenger
	NearStops []NearStop
}

// Assignment is the stop a passenger will board at (or alight from).
type Assignment struct {
	PassengerID    types.ID
	RouteID        types.ID
	StopID         types.ID
	Location       types.Point
	Distance       float64
	OnSelectedPath bool
}

// PathStop is one entry of a serialized final path.
type PathStop struct {
	StopID types.ID `json:"stopId"`
	Index  int      `json:"index"`
}

// FinalPath is the ordered visiting sequence for the vehicle.
type FinalPath []PathStop

// Alert reports a phase whose selected path leaves too many passengers out.
type Alert struct {
	RouteID             types.ID
	Phase               Phase
	UnmatchedUsersCount float64 // percentage of scored passengers
}

// Rules holds the walking-distance policy applied by the matcher.
type Rules struct {
	CaptureRadiusMeters float64
	MaxNearStops        int
	UnmatchedThreshold  float64 // percent
}

const (
	// defaultCaptureRadius is the farthest a passenger is asked to walk to a stop.
	defaultCaptureRadius = 450.0
	// defaultMaxNearStops bounds each passenger's shortlist.
	defaultMaxNearStops = 3
	// defaultUnmatchedThreshold is the unmatched percentage that pages operations.
	defaultUnmatchedThreshold = 30.0
)

// DefaultRules returns the rules used unless configuration overrides them.
func DefaultRules() Rules {
	return Rules{
		CaptureRadiusMeters: defaultCaptureRadius,
		MaxNearStops:        defaultMaxNearStops,
		UnmatchedThreshold:  defaultUnmatchedThreshold,
	}
}
