// README: Route store backed by PostgreSQL/PostGIS: due routes, phase catalogs and write-back.
package route

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mihir-logicrays/drive-it/internal/modules/geo"
	"github.com/mihir-logicrays/drive-it/internal/modules/matching"
	"github.com/mihir-logicrays/drive-it/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// DueRoutes returns unconfigured routes departing at or before `before`,
// with both geofences and their riders.
func (s *Store) DueRoutes(ctx context.Context, before time.Time) ([]Route, error) {
	rows, err := s.db.Query(ctx, `
		SELECT r.id::text,
		       ST_AsGeoJSON(oa.geography),
		       ST_AsGeoJSON(da.geography),
		       r.departure_time,
		       r.is_configured_route,
		       COALESCE(r.final_highest_path, '')
		FROM routes r
		JOIN areas oa ON oa.id = r.origin_area_id
		JOIN areas da ON da.id = r.destination_area_id
		WHERE r.is_configured_route = false
		  AND r.departure_time <= $1
		ORDER BY r.departure_time, r.id`, before,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var routes []Route
	index := map[types.ID]int{}
	for rows.Next() {
		var r Route
		var origin, destination string
		if err := rows.Scan(&r.ID, &origin, &destination, &r.DepartureTime, &r.Configured, &r.FinalPath); err != nil {
			return nil, err
		}
		if r.OriginArea, err = geo.ParsePolygon([]byte(origin)); err != nil {
			return nil, fmt.Errorf("route %s origin area: %w", r.ID, err)
		}
		if r.DestinationArea, err = geo.ParsePolygon([]byte(destination)); err != nil {
			return nil, fmt.Errorf("route %s destination area: %w", r.ID, err)
		}
		index[r.ID] = len(routes)
		routes = append(routes, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(routes) == 0 {
		return routes, nil
	}

	ids := make([]string, len(routes))
	for i, r := range routes {
		ids[i] = string(r.ID)
	}
	passengers, err := s.passengers(ctx, ids)
	if err != nil {
		return nil, err
	}
	for routeID, list := range passengers {
		if i, ok := index[routeID]; ok {
			routes[i].Passengers = list
		}
	}
	return routes, nil
}

func (s *Store) passengers(ctx context.Context, routeIDs []string) (map[types.ID][]matching.Passenger, error) {
	rows, err := s.db.Query(ctx, `
		SELECT rsu.route_id::text,
		       rsu.user_id::text,
		       ST_AsGeoJSON(rsu.desired_pickup),
		       ST_AsGeoJSON(rsu.desired_dropoff),
		       COALESCE(u.fcm_token, ''),
		       rsu.pickup_stop_id::text,
		       rsu.dropoff_stop_id::text
		FROM route_stop_user rsu
		JOIN users u ON u.id = rsu.user_id
		WHERE rsu.route_id::text = ANY($1::text[])
		ORDER BY rsu.route_id, rsu.created_at, rsu.user_id`, routeIDs,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[types.ID][]matching.Passenger{}
	for rows.Next() {
		var routeID types.ID
		var p matching.Passenger
		var pickup, dropoff string
		var pickupStop, dropoffStop *string
		if err := rows.Scan(&routeID, &p.UserID, &pickup, &dropoff, &p.PushToken, &pickupStop, &dropoffStop); err != nil {
			return nil, err
		}
		if p.DesiredPickup, err = geo.ParsePoint([]byte(pickup)); err != nil {
			return nil, fmt.Errorf("user %s desired pickup: %w", p.UserID, err)
		}
		if p.DesiredDropoff, err = geo.ParsePoint([]byte(dropoff)); err != nil {
			return nil, fmt.Errorf("user %s desired dropoff: %w", p.UserID, err)
		}
		p.PickupStopID = toIDPtr(pickupStop)
		p.DropoffStopID = toIDPtr(dropoffStop)
		out[routeID] = append(out[routeID], p)
	}
	return out, rows.Err()
}

// PhaseCatalog loads the path variants, oldest first, and the stop set for
// a route and phase.
func (s *Store) PhaseCatalog(ctx context.Context, routeID types.ID, phase matching.Phase) (Catalog, error) {
	var cat Catalog

	rows, err := s.db.Query(ctx, `
		SELECT id::text, stops
		FROM paths
		WHERE routes_id = $1 AND is_dropoff = $2
		ORDER BY created_at, id`, string(routeID), phase.IsDropoff(),
	)
	if err != nil {
		return Catalog{}, err
	}
	for rows.Next() {
		v := matching.PathVariant{RouteID: routeID, Phase: phase}
		var raw string
		if err := rows.Scan(&v.ID, &raw); err != nil {
			rows.Close()
			return Catalog{}, err
		}
		if v.Steps, err = parseSteps(raw); err != nil {
			rows.Close()
			return Catalog{}, fmt.Errorf("path %s: %w", v.ID, err)
		}
		cat.Variants = append(cat.Variants, v)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return Catalog{}, err
	}

	rows, err = s.db.Query(ctx, `
		SELECT id::text, ST_Y(location::geometry), ST_X(location::geometry)
		FROM stops
		WHERE route_id = $1 AND is_dropoff = $2
		ORDER BY id`, string(routeID), phase.IsDropoff(),
	)
	if err != nil {
		return Catalog{}, err
	}
	defer rows.Close()
	for rows.Next() {
		stop := matching.Stop{RouteID: routeID, Phase: phase}
		if err := rows.Scan(&stop.ID, &stop.Location.Lat, &stop.Location.Lng); err != nil {
			return Catalog{}, err
		}
		cat.Stops = append(cat.Stops, stop)
	}
	return cat, rows.Err()
}

// SetPassengerStop records the assigned stop of one rider for a phase.
func (s *Store) SetPassengerStop(ctx context.Context, routeID, userID types.ID, phase matching.Phase, stopID types.ID) error {
	tag, err := s.db.Exec(ctx,
		fmt.Sprintf(`UPDATE route_stop_user SET %s = $3 WHERE route_id = $1 AND user_id = $2`, stopColumn(phase)),
		string(routeID), string(userID), string(stopID),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: route %s user %s", ErrNotFound, routeID, userID)
	}
	return nil
}

// SetFinalPath stores the merged visiting sequence and marks the route
// configured. It refuses a path without the pickup phase. Completion flags
// only ever move from false to true.
func (s *Store) SetFinalPath(ctx context.Context, routeID types.ID, path matching.FinalPath, done PhaseFlags) error {
	if !done.Configured() {
		return fmt.Errorf("%w: route %s", ErrPickupPending, routeID)
	}
	raw, err := encodeFinalPath(path)
	if err != nil {
		return err
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE routes
		SET final_highest_path = $2,
		    is_configured_route = true,
		    pickup_configured = true,
		    dropoff_configured = dropoff_configured OR $3
		WHERE id = $1`,
		string(routeID), raw, done.Dropoff,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: route %s", ErrNotFound, routeID)
	}
	return nil
}

// SetPhaseDone records that one phase has been configured.
func (s *Store) SetPhaseDone(ctx context.Context, routeID types.ID, phase matching.Phase) error {
	tag, err := s.db.Exec(ctx,
		fmt.Sprintf(`UPDATE routes SET %s = true WHERE id = $1`, phaseColumn(phase)),
		string(routeID),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: route %s", ErrNotFound, routeID)
	}
	return nil
}

func phaseColumn(phase matching.Phase) string {
	if phase.IsDropoff() {
		return "dropoff_configured"
	}
	return "pickup_configured"
}

func stopColumn(phase matching.Phase) string {
	if phase.IsDropoff() {
		return "dropoff_stop_id"
	}
	return "pickup_stop_id"
}

type stepEntry struct {
	StopID types.ID `json:"stopId"`
}

// parseSteps decodes paths.stops: an array of steps, each an array of
// {"stopId": ...} entries.
func parseSteps(raw string) ([]matching.Step, error) {
	if raw == "" {
		return nil, nil
	}
	var decoded [][]stepEntry
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return nil, fmt.Errorf("decoding path steps: %w", err)
	}
	steps := make([]matching.Step, 0, len(decoded))
	for _, entries := range decoded {
		step := matching.Step{StopIDs: make([]types.ID, 0, len(entries))}
		for _, e := range entries {
			if e.StopID != "" {
				step.StopIDs = append(step.StopIDs, e.StopID)
			}
		}
		steps = append(steps, step)
	}
	return steps, nil
}

func encodeFinalPath(path matching.FinalPath) (string, error) {
	if path == nil {
		path = matching.FinalPath{}
	}
	raw, err := json.Marshal(path)
	if err != nil {
		return "", fmt.Errorf("encoding final path: %w", err)
	}
	return string(raw), nil
}

func toIDPtr(s *string) *types.ID {
	if s == nil || *s == "" {
		return nil
	}
	id := types.ID(*s)
	return &id
}
