// README: Geofence and proximity matcher; builds each passenger's NearStop shortlist.
package matching

import (
	"github.com/mihir-logicrays/drive-it/internal/modules/geo"
	"github.com/mihir-logicrays/drive-it/internal/types"
)

// Fence is the phase bounding area. *geo.Polygon satisfies it.
type Fence interface {
	Contains(p types.Point) bool
}

// NearStops ranks the catalog stops within the capture radius of desired,
// nearest first, and keeps at most rules.MaxNearStops of them.
func NearStops(passengerID types.ID, desired types.Point, stops []Stop, rules Rules) []NearStop {
	var near []NearStop
	for _, s := range stops {
		d := geo.HaversineMeters(desired, s.Location)
		if d > rules.CaptureRadiusMeters {
			continue
		}
		near = append(near, NearStop{
			PassengerID: passengerID,
			StopID:      s.ID,
			Location:    s.Location,
			Distance:    d,
		})
	}
	geo.SortByDistance(near, func(n NearStop) float64 { return n.Distance })
	if rules.MaxNearStops >= 0 && len(near) > rules.MaxNearStops {
		near = near[:rules.MaxNearStops]
	}
	return near
}

// MatchPassengers returns the scored passengers for a phase: those whose
// desired location is inside the fence and who have at least one stop in
// range. Input order is preserved. Passengers outside the fence or without
// a stop in range are dropped.
func MatchPassengers(phase Phase, fence Fence, stops []Stop, passengers []Passenger, rules Rules) []Candidate {
	var out []Candidate
	if fence == nil {
		return out
	}
	for _, p := range passengers {
		desired := p.Desired(phase)
		if !fence.Contains(desired) {
			continue
		}
		near := NearStops(p.UserID, desired, stops, rules)
		if len(near) == 0 {
			continue
		}
		out = append(out, Candidate{Passenger: p, NearStops: near})
	}
	return out
}
