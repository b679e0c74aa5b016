// README: Stop assignment and final path construction for a selected step.
package matching

import (
	"fmt"

	"github.com/mihir-logicrays/drive-it/internal/modules/geo"
	"github.com/mihir-logicrays/drive-it/internal/types"
)

// AssignStops gives every candidate exactly one stop: the nearest of its
// NearStops that the selected step serves, or failing that its nearest
// NearStop overall.
func AssignStops(routeID types.ID, candidates []Candidate, selected Step) []Assignment {
	out := make([]Assignment, 0, len(candidates))
	for _, c := range candidates {
		if len(c.NearStops) == 0 {
			continue
		}
		pick, onPath := c.NearStops[0], false
		for _, n := range c.NearStops {
			if selected.Has(n.StopID) {
				pick, onPath = n, true
				break
			}
		}
		out = append(out, Assignment{
			PassengerID:    c.Passenger.UserID,
			RouteID:        routeID,
			StopID:         pick.StopID,
			Location:       pick.Location,
			Distance:       pick.Distance,
			OnSelectedPath: onPath,
		})
	}
	return out
}

// BuildFinalPath orders the selected step's stops plus every off-path
// assigned stop by distance from the anchor (the step's first stop) and
// numbers them from zero. Stop ids appear once.
func BuildFinalPath(selected Step, assignments []Assignment, catalog map[types.ID]Stop) (FinalPath, error) {
	if len(selected.StopIDs) == 0 {
		return nil, nil
	}
	anchor, ok := catalog[selected.StopIDs[0]]
	if !ok {
		return nil, fmt.Errorf("%w: anchor %s", ErrUnknownStop, selected.StopIDs[0])
	}

	seen := make(map[types.ID]bool, len(selected.StopIDs)+len(assignments))
	ids := make([]types.ID, 0, len(selected.StopIDs)+len(assignments))
	for _, id := range selected.StopIDs {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for _, a := range assignments {
		if a.OnSelectedPath || seen[a.StopID] {
			continue
		}
		seen[a.StopID] = true
		ids = append(ids, a.StopID)
	}

	type ranked struct {
		id   types.ID
		dist float64
	}
	stops := make([]ranked, 0, len(ids))
	for _, id := range ids {
		s, ok := catalog[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownStop, id)
		}
		stops = append(stops, ranked{id: id, dist: geo.HaversineMeters(anchor.Location, s.Location)})
	}
	geo.SortByDistance(stops, func(r ranked) float64 { return r.dist })

	path := make(FinalPath, len(stops))
	for i, r := range stops {
		path[i] = PathStop{StopID: r.id, Index: i}
	}
	return path, nil
}

// MergePhases appends the dropoff path after the pickup path and renumbers
// the result from zero.
func MergePhases(pickup, dropoff FinalPath) FinalPath {
	merged := make(FinalPath, 0, len(pickup)+len(dropoff))
	for _, s := range pickup {
		merged = append(merged, PathStop{StopID: s.StopID, Index: len(merged)})
	}
	for _, s := range dropoff {
		merged = append(merged, PathStop{StopID: s.StopID, Index: len(merged)})
	}
	return merged
}

// IndexStops keys a stop catalog by id.
func IndexStops(stops []Stop) map[types.ID]Stop {
	idx := make(map[types.ID]Stop, len(stops))
	for _, s := range stops {
		idx[s.ID] = s
	}
	return idx
}
