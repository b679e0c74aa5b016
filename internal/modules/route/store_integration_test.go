package route

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mihir-logicrays/drive-it/internal/modules/matching"
	"github.com/mihir-logicrays/drive-it/internal/types"
)

const (
	originGeoJSON      = `{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,1],[0,0]]]}`
	destinationGeoJSON = `{"type":"Polygon","coordinates":[[[2,0],[3,0],[3,1],[2,1],[2,0]]]}`
)

// testDB connects to DRIVEIT_TEST_DSN and applies the schema migration.
func testDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("DRIVEIT_TEST_DSN")
	if dsn == "" {
		t.Skip("DRIVEIT_TEST_DSN not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, pool.Ping(ctx))

	schema, err := os.ReadFile(filepath.Join("..", "..", "..", "migrations", "0001_init.sql"))
	require.NoError(t, err)
	_, err = pool.Exec(ctx, string(schema))
	require.NoError(t, err)
	return pool
}

// seed inserts rows for one test and removes them afterwards.
type seed struct {
	t      *testing.T
	pool   *pgxpool.Pool
	routes []string
	areas  []string
	users  []string
}

func newSeed(t *testing.T, pool *pgxpool.Pool) *seed {
	s := &seed{t: t, pool: pool}
	t.Cleanup(func() {
		ctx := context.Background()
		_, _ = pool.Exec(ctx, `DELETE FROM routes WHERE id::text = ANY($1::text[])`, s.routes)
		_, _ = pool.Exec(ctx, `DELETE FROM areas WHERE id::text = ANY($1::text[])`, s.areas)
		_, _ = pool.Exec(ctx, `DELETE FROM users WHERE id = ANY($1::text[])`, s.users)
	})
	return s
}

func (s *seed) area(geojson string) string {
	s.t.Helper()
	var id string
	err := s.pool.QueryRow(context.Background(),
		`INSERT INTO areas (name, geography) VALUES ('test', ST_GeomFromGeoJSON($1)::geography) RETURNING id::text`,
		geojson,
	).Scan(&id)
	require.NoError(s.t, err)
	s.areas = append(s.areas, id)
	return id
}

func (s *seed) route(departure time.Time, configured bool) types.ID {
	s.t.Helper()
	origin, destination := s.area(originGeoJSON), s.area(destinationGeoJSON)
	var id string
	err := s.pool.QueryRow(context.Background(), `
		INSERT INTO routes (origin_area_id, destination_area_id, departure_time, is_configured_route)
		VALUES ($1::uuid, $2::uuid, $3, $4)
		RETURNING id::text`,
		origin, destination, departure, configured,
	).Scan(&id)
	require.NoError(s.t, err)
	s.routes = append(s.routes, id)
	return types.ID(id)
}

func (s *seed) rider(routeID types.ID, token string, pickup, dropoff types.Point) types.ID {
	s.t.Helper()
	ctx := context.Background()
	userID := uuid.NewString()
	_, err := s.pool.Exec(ctx, `INSERT INTO users (id, fcm_token) VALUES ($1, $2)`, userID, token)
	require.NoError(s.t, err)
	s.users = append(s.users, userID)
	_, err = s.pool.Exec(ctx, `
		INSERT INTO route_stop_user (route_id, user_id, desired_pickup, desired_dropoff)
		VALUES ($1::uuid, $2,
		        ST_SetSRID(ST_MakePoint($3, $4), 4326)::geography,
		        ST_SetSRID(ST_MakePoint($5, $6), 4326)::geography)`,
		string(routeID), userID, pickup.Lng, pickup.Lat, dropoff.Lng, dropoff.Lat,
	)
	require.NoError(s.t, err)
	return types.ID(userID)
}

func (s *seed) stop(routeID types.ID, dropoff bool, at types.Point) types.ID {
	s.t.Helper()
	var id string
	err := s.pool.QueryRow(context.Background(), `
		INSERT INTO stops (route_id, is_dropoff, location)
		VALUES ($1::uuid, $2, ST_SetSRID(ST_MakePoint($3, $4), 4326)::geography)
		RETURNING id::text`,
		string(routeID), dropoff, at.Lng, at.Lat,
	).Scan(&id)
	require.NoError(s.t, err)
	return types.ID(id)
}

func (s *seed) path(routeID types.ID, dropoff bool, createdAt time.Time, stepIDs ...types.ID) types.ID {
	s.t.Helper()
	steps := make([][]stepEntry, len(stepIDs))
	for i, id := range stepIDs {
		steps[i] = []stepEntry{{StopID: id}}
	}
	raw, err := json.Marshal(steps)
	require.NoError(s.t, err)
	var id string
	err = s.pool.QueryRow(context.Background(), `
		INSERT INTO paths (routes_id, is_dropoff, stops, created_at)
		VALUES ($1::uuid, $2, $3, $4)
		RETURNING id::text`,
		string(routeID), dropoff, string(raw), createdAt,
	).Scan(&id)
	require.NoError(s.t, err)
	return types.ID(id)
}

type routeFlags struct {
	configured bool
	pickup     bool
	dropoff    bool
	path       *string
}

func readFlags(t *testing.T, pool *pgxpool.Pool, routeID types.ID) routeFlags {
	t.Helper()
	var f routeFlags
	err := pool.QueryRow(context.Background(), `
		SELECT is_configured_route, pickup_configured, dropoff_configured, final_highest_path
		FROM routes WHERE id = $1::uuid`, string(routeID),
	).Scan(&f.configured, &f.pickup, &f.dropoff, &f.path)
	require.NoError(t, err)
	return f
}

func findRoute(routes []Route, id types.ID) (Route, bool) {
	for _, r := range routes {
		if r.ID == id {
			return r, true
		}
	}
	return Route{}, false
}

func TestStore_DueRoutes(t *testing.T) {
	pool := testDB(t)
	s := newSeed(t, pool)
	store := NewStore(pool)

	base := time.Date(2001, 3, 4, 8, 0, 0, 0, time.UTC)
	due := s.route(base, false)
	later := s.route(base.Add(3*time.Hour), false)
	done := s.route(base.Add(-time.Hour), true)
	rider := s.rider(due, "tok-1", types.Point{Lat: 0.25, Lng: 0.5}, types.Point{Lat: 0.75, Lng: 2.5})

	routes, err := store.DueRoutes(context.Background(), base.Add(time.Hour))
	require.NoError(t, err)

	r, ok := findRoute(routes, due)
	require.True(t, ok, "route departing inside the window must be due")
	_, ok = findRoute(routes, later)
	assert.False(t, ok, "route departing after the window is not due")
	_, ok = findRoute(routes, done)
	assert.False(t, ok, "configured route is never due")

	assert.True(t, r.DepartureTime.Equal(base))
	assert.False(t, r.Configured)
	require.NotNil(t, r.OriginArea)
	require.NotNil(t, r.DestinationArea)
	assert.True(t, r.OriginArea.Contains(types.Point{Lat: 0.5, Lng: 0.5}))
	assert.False(t, r.OriginArea.Contains(types.Point{Lat: 0.5, Lng: 2.5}))
	assert.True(t, r.DestinationArea.Contains(types.Point{Lat: 0.5, Lng: 2.5}))

	require.Len(t, r.Passengers, 1)
	p := r.Passengers[0]
	assert.Equal(t, rider, p.UserID)
	assert.Equal(t, "tok-1", p.PushToken)
	assert.InDelta(t, 0.25, p.DesiredPickup.Lat, 1e-9)
	assert.InDelta(t, 0.5, p.DesiredPickup.Lng, 1e-9)
	assert.InDelta(t, 0.75, p.DesiredDropoff.Lat, 1e-9)
	assert.InDelta(t, 2.5, p.DesiredDropoff.Lng, 1e-9)
	assert.Nil(t, p.PickupStopID)
	assert.Nil(t, p.DropoffStopID)
}

func TestStore_PhaseCatalog(t *testing.T) {
	pool := testDB(t)
	s := newSeed(t, pool)
	store := NewStore(pool)
	ctx := context.Background()

	routeID := s.route(time.Date(2001, 3, 4, 8, 0, 0, 0, time.UTC), false)
	s1 := s.stop(routeID, false, types.Point{Lat: 0.25, Lng: 0.5})
	s2 := s.stop(routeID, false, types.Point{Lat: 0.3, Lng: 0.6})
	d1 := s.stop(routeID, true, types.Point{Lat: 0.5, Lng: 2.5})

	created := time.Date(2001, 3, 1, 0, 0, 0, 0, time.UTC)
	newer := s.path(routeID, false, created.Add(time.Minute), s2)
	older := s.path(routeID, false, created, s1, s2)
	s.path(routeID, true, created, d1)

	cat, err := store.PhaseCatalog(ctx, routeID, matching.PhasePickup)
	require.NoError(t, err)
	require.Len(t, cat.Variants, 2)
	assert.Equal(t, older, cat.Variants[0].ID, "oldest variant heads the catalog")
	assert.Equal(t, newer, cat.Variants[1].ID)
	assert.Equal(t, []matching.Step{{StopIDs: []types.ID{s1}}, {StopIDs: []types.ID{s2}}}, cat.Variants[0].Steps)

	require.Len(t, cat.Stops, 2)
	for _, st := range cat.Stops {
		assert.Equal(t, matching.PhasePickup, st.Phase)
		if st.ID == s1 {
			assert.InDelta(t, 0.25, st.Location.Lat, 1e-9)
			assert.InDelta(t, 0.5, st.Location.Lng, 1e-9)
		}
	}

	cat, err = store.PhaseCatalog(ctx, routeID, matching.PhaseDropoff)
	require.NoError(t, err)
	require.Len(t, cat.Variants, 1)
	require.Len(t, cat.Stops, 1)
	assert.Equal(t, d1, cat.Stops[0].ID)
}

func TestStore_SetPassengerStop(t *testing.T) {
	pool := testDB(t)
	s := newSeed(t, pool)
	store := NewStore(pool)
	ctx := context.Background()

	routeID := s.route(time.Date(2001, 3, 4, 8, 0, 0, 0, time.UTC), false)
	user := s.rider(routeID, "", types.Point{Lat: 0.25, Lng: 0.5}, types.Point{Lat: 0.75, Lng: 2.5})
	pickup := s.stop(routeID, false, types.Point{Lat: 0.25, Lng: 0.5})
	dropoff := s.stop(routeID, true, types.Point{Lat: 0.75, Lng: 2.5})

	require.NoError(t, store.SetPassengerStop(ctx, routeID, user, matching.PhasePickup, pickup))
	require.NoError(t, store.SetPassengerStop(ctx, routeID, user, matching.PhaseDropoff, dropoff))

	var gotPickup, gotDropoff string
	err := pool.QueryRow(ctx, `
		SELECT pickup_stop_id::text, dropoff_stop_id::text
		FROM route_stop_user WHERE route_id = $1::uuid AND user_id = $2`,
		string(routeID), string(user),
	).Scan(&gotPickup, &gotDropoff)
	require.NoError(t, err)
	assert.Equal(t, string(pickup), gotPickup)
	assert.Equal(t, string(dropoff), gotDropoff)

	err = store.SetPassengerStop(ctx, routeID, "no-such-user", matching.PhasePickup, pickup)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_CompletionFlags(t *testing.T) {
	pool := testDB(t)
	s := newSeed(t, pool)
	store := NewStore(pool)
	ctx := context.Background()

	departure := time.Date(2001, 3, 4, 8, 0, 0, 0, time.UTC)
	routeID := s.route(departure, false)

	require.NoError(t, store.SetPhaseDone(ctx, routeID, matching.PhaseDropoff))
	f := readFlags(t, pool, routeID)
	assert.False(t, f.configured)
	assert.False(t, f.pickup)
	assert.True(t, f.dropoff)
	assert.Nil(t, f.path, "recording a phase never writes a path")

	path := matching.FinalPath{{StopID: "s1", Index: 0}, {StopID: "d1", Index: 1}}
	require.NoError(t, store.SetFinalPath(ctx, routeID, path, PhaseFlags{Pickup: true}))
	f = readFlags(t, pool, routeID)
	assert.True(t, f.configured)
	assert.True(t, f.pickup)
	assert.True(t, f.dropoff, "flags never move back to false")
	require.NotNil(t, f.path)
	assert.JSONEq(t, `[{"stopId":"s1","index":0},{"stopId":"d1","index":1}]`, *f.path)

	routes, err := store.DueRoutes(ctx, departure.Add(time.Hour))
	require.NoError(t, err)
	_, ok := findRoute(routes, routeID)
	assert.False(t, ok, "configured route leaves the due set")

	missing := types.ID(uuid.NewString())
	assert.ErrorIs(t, store.SetFinalPath(ctx, missing, path, PhaseFlags{Pickup: true}), ErrNotFound)
	assert.ErrorIs(t, store.SetPhaseDone(ctx, missing, matching.PhasePickup), ErrNotFound)
}
