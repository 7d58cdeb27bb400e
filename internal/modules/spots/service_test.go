package spots

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"tenkap/internal/config"
	"tenkap/internal/maps"
	"tenkap/internal/types"
)

// Moda, Kadıköy.
var origin = types.Point{Lat: 40.9870, Lng: 29.0260}

// offsetNorth moves p roughly meters north.
func offsetNorth(p types.Point, meters float64) types.Point {
	return types.Point{Lat: p.Lat + meters/111195.0, Lng: p.Lng}
}

type fakeRepo struct {
	popular   []Cell
	unvisited []Cell
	visited   map[string]struct{}
	recorded  []Visit
	err       error

	gotDay, gotHour int
	gotBounds       Bounds
}

func (f *fakeRepo) PopularCells(_ context.Context, day, hour int, b Bounds) ([]Cell, error) {
	f.gotDay, f.gotHour, f.gotBounds = day, hour, b
	return f.popular, f.err
}

func (f *fakeRepo) UnvisitedCells(_ context.Context, _ types.ID, b Bounds) ([]Cell, error) {
	f.gotBounds = b
	return f.unvisited, f.err
}

func (f *fakeRepo) VisitedPlaces(context.Context, types.ID) (map[string]struct{}, error) {
	return f.visited, nil
}

func (f *fakeRepo) RecordVisit(_ context.Context, v Visit) error {
	f.recorded = append(f.recorded, v)
	return f.err
}

type fakePlaces struct {
	places []maps.Place
	err    error
	calls  int
}

func (f *fakePlaces) SearchNearby(context.Context, types.Point, float64) ([]maps.Place, error) {
	f.calls++
	return f.places, f.err
}

func newSvc(t *testing.T, repo Repository, places PlacesSource) *Service {
	return NewService(repo, places, config.SpotsConfig{RadiusMeters: 500, Limit: 2}, zaptest.NewLogger(t))
}

func TestFindNearbyPopularSpot(t *testing.T) {
	repo := &fakeRepo{popular: []Cell{
		{PlaceName: "Far Cafe", Position: offsetNorth(origin, 900), VisitCount: 99},
		{PlaceName: "Narr Cafe", Position: offsetNorth(origin, 200), VisitCount: 40},
		{PlaceName: "Small Cafe", Position: offsetNorth(origin, 50), VisitCount: 10},
	}}
	svc := newSvc(t, repo, nil)

	spot, err := svc.FindNearbyPopularSpot(context.Background(), origin, 5, 14)
	require.NoError(t, err)
	require.NotNil(t, spot)
	assert.Equal(t, "Narr Cafe", spot.Name)
	assert.Equal(t, 40, spot.VisitCount)
	assert.Equal(t, 5, repo.gotDay)
	assert.Equal(t, 14, repo.gotHour)
	assert.Less(t, repo.gotBounds.MinLat, origin.Lat)
	assert.Greater(t, repo.gotBounds.MaxLng, origin.Lng)
}

func TestFindNearbyPopularSpot_TieGoesToCloser(t *testing.T) {
	repo := &fakeRepo{popular: []Cell{
		{PlaceName: "B", Position: offsetNorth(origin, 300), VisitCount: 7},
		{PlaceName: "A", Position: offsetNorth(origin, 100), VisitCount: 7},
	}}
	spot, err := newSvc(t, repo, nil).FindNearbyPopularSpot(context.Background(), origin, 0, 0)
	require.NoError(t, err)
	require.NotNil(t, spot)
	assert.Equal(t, "A", spot.Name)
}

func TestFindNearbyPopularSpot_NoneInRange(t *testing.T) {
	repo := &fakeRepo{popular: []Cell{{PlaceName: "Far", Position: offsetNorth(origin, 2000), VisitCount: 1}}}
	spot, err := newSvc(t, repo, nil).FindNearbyPopularSpot(context.Background(), origin, 1, 9)
	require.NoError(t, err)
	assert.Nil(t, spot)
}

func TestFindNearbyPopularSpot_Errors(t *testing.T) {
	svc := newSvc(t, &fakeRepo{}, nil)
	for _, tc := range []struct{ day, hour int }{{-1, 3}, {7, 3}, {2, 24}, {2, -1}} {
		_, err := svc.FindNearbyPopularSpot(context.Background(), origin, tc.day, tc.hour)
		assert.ErrorIs(t, err, ErrBadRequest, "day=%d hour=%d", tc.day, tc.hour)
	}

	boom := errors.New("pg down")
	_, err := newSvc(t, &fakeRepo{err: boom}, nil).FindNearbyPopularSpot(context.Background(), origin, 1, 1)
	assert.ErrorIs(t, err, boom)
}

func TestFindUnexploredNearbySpots(t *testing.T) {
	repo := &fakeRepo{unvisited: []Cell{
		{PlaceName: "Quiet", Position: offsetNorth(origin, 100), VisitCount: 3},
		{PlaceName: "Busy", Position: offsetNorth(origin, 400), VisitCount: 30},
		{PlaceName: "Outside", Position: offsetNorth(origin, 800), VisitCount: 300},
		{PlaceName: "Mid", Position: offsetNorth(origin, 250), VisitCount: 12},
	}}
	places := &fakePlaces{}
	got, err := newSvc(t, repo, places).FindUnexploredNearbySpots(context.Background(), "u1", origin)
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, "Busy", got[0].Name)
	assert.Equal(t, "Mid", got[1].Name)
	assert.Zero(t, places.calls)
}

func TestFindUnexploredNearbySpots_PlacesFallback(t *testing.T) {
	repo := &fakeRepo{visited: map[string]struct{}{"Seen Cafe": {}}}
	places := &fakePlaces{places: []maps.Place{
		{Name: "Seen Cafe", Location: offsetNorth(origin, 30)},
		{Name: "Kronotrop", Location: offsetNorth(origin, 60)},
	}}
	got, err := newSvc(t, repo, places).FindUnexploredNearbySpots(context.Background(), "u1", origin)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Kronotrop", got[0].Name)
	assert.Equal(t, 1, places.calls)
}

func TestFindUnexploredNearbySpots_PlacesFailureIsEmpty(t *testing.T) {
	places := &fakePlaces{err: errors.New("quota")}
	got, err := newSvc(t, &fakeRepo{}, places).FindUnexploredNearbySpots(context.Background(), "u1", origin)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFindUnexploredNearbySpots_NoPlacesClient(t *testing.T) {
	got, err := newSvc(t, &fakeRepo{}, nil).FindUnexploredNearbySpots(context.Background(), "u1", origin)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = newSvc(t, &fakeRepo{}, nil).FindUnexploredNearbySpots(context.Background(), "", origin)
	assert.ErrorIs(t, err, ErrBadRequest)
}

func TestRecordVisit(t *testing.T) {
	repo := &fakeRepo{}
	svc := newSvc(t, repo, nil)
	fixed := time.Date(2026, 3, 6, 17, 30, 0, 0, time.FixedZone("TRT", 3*3600))
	svc.now = func() time.Time { return fixed }

	require.NoError(t, svc.RecordVisit(context.Background(), Visit{UserID: "u1", PlaceName: "Moda"}))
	require.Len(t, repo.recorded, 1)
	assert.Equal(t, fixed.UTC(), repo.recorded[0].VisitedAt)
	assert.Equal(t, time.UTC, repo.recorded[0].VisitedAt.Location())

	assert.ErrorIs(t, svc.RecordVisit(context.Background(), Visit{UserID: "u1"}), ErrBadRequest)
}

func TestSlot(t *testing.T) {
	// Friday 23:30 in Istanbul is Friday 20:30 UTC.
	ts := time.Date(2026, 3, 6, 23, 30, 0, 0, time.FixedZone("TRT", 3*3600))
	day, hour := slot(ts)
	assert.Equal(t, int(time.Friday), day)
	assert.Equal(t, 20, hour)
}

func TestStoreRoundTrip(t *testing.T) {
	dsn := os.Getenv("TENKAP_TEST_DSN")
	if dsn == "" {
		t.Skip("TENKAP_TEST_DSN not set; skipping integration test")
	}
	ctx := context.Background()
	db, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	store := NewStore(db)
	svc := NewService(store, nil, config.SpotsConfig{RadiusMeters: 500, Limit: 5}, zaptest.NewLogger(t))

	suffix := time.Now().UnixNano()
	visitor := types.ID(fmt.Sprintf("visitor_%d", suffix))
	other := types.ID(fmt.Sprintf("other_%d", suffix))
	place := fmt.Sprintf("Test Cafe %d", suffix)
	at := time.Date(2026, 3, 6, 14, 0, 0, 0, time.UTC)
	t.Cleanup(func() {
		_, _ = db.Exec(ctx, `DELETE FROM user_visits WHERE place_name = $1`, place)
		_, _ = db.Exec(ctx, `DELETE FROM heat_map_cells WHERE place_name = $1`, place)
	})

	require.NoError(t, svc.RecordVisit(ctx, Visit{UserID: visitor, PlaceName: place, Position: origin, VisitedAt: at}))

	spot, err := svc.FindNearbyPopularSpot(ctx, offsetNorth(origin, 20), int(at.Weekday()), at.Hour())
	require.NoError(t, err)
	require.NotNil(t, spot)

	unexplored, err := svc.FindUnexploredNearbySpots(ctx, other, origin)
	require.NoError(t, err)
	assert.Contains(t, spotNames(unexplored), place)

	unexplored, err = svc.FindUnexploredNearbySpots(ctx, visitor, origin)
	require.NoError(t, err)
	assert.NotContains(t, spotNames(unexplored), place)
}

func spotNames(ss []Spot) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = s.Name
	}
	return out
}
