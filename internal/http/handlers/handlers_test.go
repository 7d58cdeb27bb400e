// README: Handler tests for scoring, nudge selection, and location updates over httptest.
package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenkap/internal/http/handlers"
	"tenkap/internal/http/middleware"
	"tenkap/internal/infra"
	"tenkap/internal/modules/location"
	"tenkap/internal/modules/matching"
	"tenkap/internal/modules/nudge"
	"tenkap/internal/modules/spots"
	"tenkap/internal/types"
)

// ---------------------------------------------------------------------------
// Test doubles
// ---------------------------------------------------------------------------

type stubMatching struct {
	scorer  *matching.Scorer
	stored  map[types.ID]matching.UserProfile
	nearby  []matching.NearbyMatch
	err     error
	gotUser types.ID
	gotR    float64
}

func (s *stubMatching) Score(a, b matching.UserProfile) matching.MatchScore {
	return s.scorer.Match(a, b)
}

func (s *stubMatching) ScoreByID(_ context.Context, a, b types.ID) (matching.MatchScore, error) {
	pa, ok := s.stored[a]
	if !ok {
		return matching.MatchScore{}, fmt.Errorf("loading %s: %w", a, matching.ErrProfileNotFound)
	}
	pb, ok := s.stored[b]
	if !ok {
		return matching.MatchScore{}, matching.ErrProfileNotFound
	}
	return s.scorer.Match(pa, pb), nil
}

func (s *stubMatching) NearbyMatches(_ context.Context, uid types.ID, _ types.Point, r float64) ([]matching.NearbyMatch, error) {
	s.gotUser, s.gotR = uid, r
	return s.nearby, s.err
}

type stubNudges struct {
	decision *nudge.Decision
	err      error
	got      nudge.UserContext
	token    string
	deadline bool
}

func (s *stubNudges) Decide(ctx context.Context, uc nudge.UserContext) (*nudge.Decision, error) {
	s.got = uc
	_, s.deadline = ctx.Deadline()
	return s.decision, s.err
}

func (s *stubNudges) DecideAndPush(ctx context.Context, uc nudge.UserContext, token string) (*nudge.Decision, string, error) {
	s.got, s.token = uc, token
	if s.decision == nil || s.err != nil {
		return nil, "", s.err
	}
	return s.decision, "msg-42", nil
}

type stubLocation struct {
	got location.Update
	err error
}

func (s *stubLocation) Update(_ context.Context, u location.Update) error {
	s.got = u
	return s.err
}

type stubVisits struct {
	got spots.Visit
	err error
}

func (s *stubVisits) RecordVisit(_ context.Context, v spots.Visit) error {
	s.got = v
	return s.err
}

type stubVerifier struct{ uid string }

func (s stubVerifier) VerifyIDToken(context.Context, string) (*infra.FirebaseToken, error) {
	if s.uid == "" {
		return nil, errors.New("invalid")
	}
	return &infra.FirebaseToken{UID: s.uid}, nil
}

type fixture struct {
	matching *stubMatching
	nudges   *stubNudges
	location *stubLocation
	visits   *stubVisits
}

// buildTestRouter wires a minimal Gin engine; a non-nil verifier enables auth.
func buildTestRouter(verifier infra.TokenVerifier) (*gin.Engine, *fixture) {
	gin.SetMode(gin.TestMode)
	f := &fixture{
		matching: &stubMatching{scorer: matching.NewScorer(), stored: map[types.ID]matching.UserProfile{}},
		nudges:   &stubNudges{},
		location: &stubLocation{},
		visits:   &stubVisits{},
	}
	r := gin.New()
	if verifier != nil {
		r.Use(middleware.Auth(verifier))
	}
	mh := handlers.NewMatchHandler(f.matching)
	r.POST("/api/matches/score", mh.ScorePair)
	r.GET("/api/matches/score", mh.ScoreStored)
	r.GET("/api/matches/nearby", mh.Nearby)
	nh := handlers.NewNudgeHandler(f.nudges, time.Second)
	r.POST("/api/nudges", nh.Select)
	r.POST("/api/nudges/push", nh.Push)
	lh := handlers.NewLocationHandler(f.location, f.visits)
	r.PUT("/api/users/:id/location", lh.Update)
	r.POST("/api/users/:id/visits", lh.RecordVisit)
	return r, f
}

func doRequest(r *gin.Engine, method, path string, body interface{}, authHeader string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		_ = json.NewEncoder(&buf).Encode(b)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

// ---------------------------------------------------------------------------
// Matching
// ---------------------------------------------------------------------------

func TestScorePair(t *testing.T) {
	r, _ := buildTestRouter(nil)
	w := doRequest(r, http.MethodPost, "/api/matches/score", map[string]any{
		"user_a": map[string]any{"id": "a", "interests": []string{"coffee", "books"}},
		"user_b": map[string]any{"id": "b", "interests": []string{"coffee"}, "age": 35},
	}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var got matching.MatchScore
	decode(t, w, &got)
	assert.Equal(t, types.ID("a"), got.UserA)
	assert.Equal(t, 0.5, got.Breakdown.InterestSimilarity)
	assert.Equal(t, 0.5, got.Breakdown.DemographicFit)
	assert.InDelta(t, 0.25*0.5+0.20*0.5+0.30*0.5+0.15*0.5+0.10*0.5, got.Score, 1e-9)
}

func TestScorePair_InvalidJSON(t *testing.T) {
	r, _ := buildTestRouter(nil)
	w := doRequest(r, http.MethodPost, "/api/matches/score", "{", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestScoreStored(t *testing.T) {
	r, f := buildTestRouter(nil)
	f.matching.stored["a"] = matching.UserProfile{ID: "a"}
	f.matching.stored["b"] = matching.UserProfile{ID: "b"}

	w := doRequest(r, http.MethodGet, "/api/matches/score?user_a=a&user_b=b", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(r, http.MethodGet, "/api/matches/score?user_a=a&user_b=zzz", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(r, http.MethodGet, "/api/matches/score?user_a=a", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestNearby(t *testing.T) {
	r, f := buildTestRouter(nil)
	f.matching.nearby = []matching.NearbyMatch{{UserID: "x", DistanceMeters: 42, MatchScore: 0.8}}

	w := doRequest(r, http.MethodGet, "/api/matches/nearby?user_id=u1&lat=40.98&lng=29.02&radius_m=300", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Matches []matching.NearbyMatch `json:"matches"`
	}
	decode(t, w, &body)
	assert.Equal(t, f.matching.nearby, body.Matches)
	assert.Equal(t, types.ID("u1"), f.matching.gotUser)
	assert.Equal(t, 300.0, f.matching.gotR)
}

func TestNearby_BadQuery(t *testing.T) {
	r, _ := buildTestRouter(nil)
	for _, q := range []string{
		"user_id=u1&lng=29",
		"lat=1&lng=2",
		"user_id=u1&lat=1&lng=2&radius_m=-5",
		"user_id=u%201&lat=1&lng=2",
	} {
		w := doRequest(r, http.MethodGet, "/api/matches/nearby?"+q, nil, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
	}
}

func TestNearby_ServiceErrors(t *testing.T) {
	r, f := buildTestRouter(nil)
	f.matching.err = matching.ErrProfileNotFound
	w := doRequest(r, http.MethodGet, "/api/matches/nearby?user_id=u1&lat=1&lng=2", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	f.matching.err = errors.New("redis down")
	w = doRequest(r, http.MethodGet, "/api/matches/nearby?user_id=u1&lat=1&lng=2", nil, "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"internal error"}`, w.Body.String())
}

// ---------------------------------------------------------------------------
// Nudges
// ---------------------------------------------------------------------------

func nudgeBody() map[string]any {
	return map[string]any{
		"user_id":          "u1",
		"current_location": map[string]any{"lat": 40.987, "lng": 29.026, "place_name": "Moda"},
		"current_time":     "2026-05-11T14:00:00Z",
		"day_of_week":      1,
		"recent_locations": []map[string]any{
			{"latitude": 40.987, "longitude": 29.026, "timestamp": "2026-05-11T14:00:00Z"},
		},
		"nearby_matches": []map[string]any{{"user_id": "x", "distance_meters": 120, "match_score": 0.8}},
	}
}

func TestSelectNudge(t *testing.T) {
	r, f := buildTestRouter(nil)
	sub := "Senin gibi düşünen biri 120m mesafede"
	f.nudges.decision = &nudge.Decision{Type: nudge.TypeMatchProximity, Message: "💫 Birisi yakında", Subcopy: &sub, Priority: 10}

	w := doRequest(r, http.MethodPost, "/api/nudges", nudgeBody(), "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var got map[string]any
	decode(t, w, &got)
	assert.Equal(t, "match_proximity", got["nudge_type"])
	assert.Equal(t, sub, got["subcopy"])
	assert.EqualValues(t, 10, got["priority"])
	assert.NotContains(t, got, "target_location")

	assert.Equal(t, types.ID("u1"), f.nudges.got.UserID)
	assert.Equal(t, "Moda", f.nudges.got.CurrentLocation.PlaceName)
	require.Len(t, f.nudges.got.RecentLocations, 1)
	assert.Equal(t, 40.987, f.nudges.got.RecentLocations[0].Lat)
	require.Len(t, f.nudges.got.NearbyMatches, 1)
	assert.Equal(t, 120.0, f.nudges.got.NearbyMatches[0].DistanceMeters)
	assert.True(t, f.nudges.deadline, "selection should run under a deadline")
}

func TestSelectNudge_LooseTimestamps(t *testing.T) {
	r, f := buildTestRouter(nil)
	body := nudgeBody()
	body["current_time"] = "2026-05-11T17:00:00+0300"
	body["recent_locations"] = []map[string]any{
		{"latitude": 40.987, "longitude": 29.026, "timestamp": "2026-05-11T14:00:00"},
		{"latitude": 40.987, "longitude": 29.026, "timestamp": "2026-05-11 13:50:00+03"},
	}

	w := doRequest(r, http.MethodPost, "/api/nudges", body, "")
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())
	require.Len(t, f.nudges.got.RecentLocations, 2)
	assert.True(t, f.nudges.got.RecentLocations[0].Timestamp.Equal(time.Date(2026, 5, 11, 14, 0, 0, 0, time.UTC)))
	assert.True(t, f.nudges.got.RecentLocations[1].Timestamp.Equal(time.Date(2026, 5, 11, 10, 50, 0, 0, time.UTC)))
	assert.Equal(t, "2026-05-11T17:00:00+0300", f.nudges.got.CurrentTime)
}

func TestSelectNudge_NoContent(t *testing.T) {
	r, _ := buildTestRouter(nil)
	w := doRequest(r, http.MethodPost, "/api/nudges", nudgeBody(), "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestSelectNudge_InvalidInput(t *testing.T) {
	r, f := buildTestRouter(nil)
	f.nudges.err = fmt.Errorf("%w: bad time", nudge.ErrInvalidInput)
	w := doRequest(r, http.MethodPost, "/api/nudges", nudgeBody(), "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	body := nudgeBody()
	delete(body, "user_id")
	w = doRequest(r, http.MethodPost, "/api/nudges", body, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSelectNudge_Timeout(t *testing.T) {
	r, f := buildTestRouter(nil)
	f.nudges.err = context.DeadlineExceeded
	w := doRequest(r, http.MethodPost, "/api/nudges", nudgeBody(), "")
	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
}

func TestPushNudge(t *testing.T) {
	r, f := buildTestRouter(nil)
	f.nudges.decision = &nudge.Decision{Type: nudge.TypeQuestion, Message: "🤔 Sana soru", Priority: 3}

	w := doRequest(r, http.MethodPost, "/api/nudges/push", map[string]any{
		"context":      nudgeBody(),
		"device_token": "tok-1",
	}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var got struct {
		Decision  nudge.Decision `json:"decision"`
		MessageID string         `json:"message_id"`
	}
	decode(t, w, &got)
	assert.Equal(t, "msg-42", got.MessageID)
	assert.Equal(t, nudge.TypeQuestion, got.Decision.Type)
	assert.Equal(t, "tok-1", f.nudges.token)
}

func TestPushNudge_NoContentAndValidation(t *testing.T) {
	r, _ := buildTestRouter(nil)
	w := doRequest(r, http.MethodPost, "/api/nudges/push", map[string]any{"context": nudgeBody(), "device_token": "tok"}, "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doRequest(r, http.MethodPost, "/api/nudges/push", map[string]any{"context": nudgeBody()}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// ---------------------------------------------------------------------------
// Location
// ---------------------------------------------------------------------------

func TestUpdateLocation(t *testing.T) {
	r, f := buildTestRouter(nil)
	w := doRequest(r, http.MethodPut, "/api/users/u1/location", map[string]any{
		"lat": 0.0, "lng": 29.02, "timestamp": "2026-05-11T14:00:00Z",
	}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, types.ID("u1"), f.location.got.UserID)
	assert.Equal(t, types.Point{Lat: 0, Lng: 29.02}, f.location.got.Position)
	assert.Equal(t, 14, f.location.got.Timestamp.Hour())
}

func TestUpdateLocation_Errors(t *testing.T) {
	r, f := buildTestRouter(nil)
	w := doRequest(r, http.MethodPut, "/api/users/u1/location", map[string]any{"lng": 29.02}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	f.location.err = location.ErrBadRequest
	w = doRequest(r, http.MethodPut, "/api/users/u1/location", map[string]any{"lat": 99.0, "lng": 29.02}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRecordVisit(t *testing.T) {
	r, f := buildTestRouter(nil)
	w := doRequest(r, http.MethodPost, "/api/users/u1/visits", map[string]any{
		"place_name": "Narr Cafe", "lat": 40.98, "lng": 29.12,
	}, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "Narr Cafe", f.visits.got.PlaceName)

	f.visits.err = spots.ErrBadRequest
	w = doRequest(r, http.MethodPost, "/api/users/u1/visits", map[string]any{"lat": 1.0}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// ---------------------------------------------------------------------------
// Authorization
// ---------------------------------------------------------------------------

func TestAuth_CallerMustMatchUser(t *testing.T) {
	r, f := buildTestRouter(stubVerifier{uid: "u1"})

	w := doRequest(r, http.MethodPut, "/api/users/u2/location", map[string]any{"lat": 1.0, "lng": 2.0}, "Bearer tok")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, f.location.got.UserID)

	body := nudgeBody()
	body["user_id"] = "u2"
	w = doRequest(r, http.MethodPost, "/api/nudges", body, "Bearer tok")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doRequest(r, http.MethodGet, "/api/matches/nearby?user_id=u2&lat=1&lng=2", nil, "Bearer tok")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doRequest(r, http.MethodPut, "/api/users/u1/location", map[string]any{"lat": 1.0, "lng": 2.0}, "Bearer tok")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuth_Unauthenticated(t *testing.T) {
	r, _ := buildTestRouter(stubVerifier{})
	w := doRequest(r, http.MethodPost, "/api/nudges", nudgeBody(), "Bearer bad")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
