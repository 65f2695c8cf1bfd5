package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dittrime/stride/internal/cache"
	"github.com/dittrime/stride/internal/client/strava"
	"github.com/dittrime/stride/internal/repository"
	"github.com/dittrime/stride/internal/xslog"
	go_json "github.com/goccy/go-json"
)

type fakeActivities struct {
	activities []strava.Activity
	listCalls  int
}

func (f *fakeActivities) List(_ context.Context, params *strava.ListParams) ([]strava.Activity, error) {
	f.listCalls++
	if params.Page > 1 {
		return nil, nil
	}
	return f.activities, nil
}

func (f *fakeActivities) Get(_ context.Context, id int64) (*strava.DetailedActivity, error) {
	for _, a := range f.activities {
		if a.ID == id {
			return &strava.DetailedActivity{Activity: a}, nil
		}
	}
	return nil, &strava.APIError{StatusCode: http.StatusNotFound, Message: "Record Not Found"}
}

func testHandler(t *testing.T, activities []strava.Activity) (*Handler, *fakeActivities) {
	t.Helper()

	fake := &fakeActivities{activities: activities}
	repo := repository.New(fake, xslog.Discard())

	store := cache.NewMemory()
	t.Cleanup(func() { _ = store.Close() })

	h := NewHandler(repo, nil, store, 5*time.Minute, func() int64 { return 42 })
	return h, fake
}

func sampleActivities() []strava.Activity {
	base := time.Date(2024, 3, 1, 7, 0, 0, 0, time.UTC)
	return []strava.Activity{
		{ID: 1, Type: strava.TypeRun, Name: "Morning Run", StartDate: base, StartDateLocal: base, Distance: 5000, MovingTime: 1500},
		{ID: 2, Type: strava.TypeRide, Name: "Commute", StartDate: base.AddDate(0, 0, 1), StartDateLocal: base.AddDate(0, 0, 1), Distance: 12000, MovingTime: 2400},
		{ID: 3, Type: strava.TypeRun, Name: "Tempo", StartDate: base.AddDate(0, 0, 2), StartDateLocal: base.AddDate(0, 0, 2), Distance: 8000, MovingTime: 2200},
	}
}

type listResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Activities []strava.Activity `json:"activities"`
		Page       int               `json:"page"`
		PerPage    int               `json:"per_page"`
		Total      int               `json:"total"`
	} `json:"data"`
}

func TestHandleListActivities(t *testing.T) {
	t.Parallel()

	h, _ := testHandler(t, sampleActivities())

	rec := httptest.NewRecorder()
	h.HandleListActivities(rec, httptest.NewRequest(http.MethodGet, "/api/activities", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}

	var resp listResponse
	if err := go_json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if !resp.Success {
		t.Error("expected success envelope")
	}
	if resp.Data.Total != 3 || len(resp.Data.Activities) != 3 {
		t.Errorf("total=%d activities=%d, want 3/3", resp.Data.Total, len(resp.Data.Activities))
	}
}

func TestHandleListActivitiesFiltered(t *testing.T) {
	t.Parallel()

	h, _ := testHandler(t, sampleActivities())

	rec := httptest.NewRecorder()
	h.HandleListActivities(rec, httptest.NewRequest(http.MethodGet, "/api/activities?type=Run&min_distance=6000", nil))

	var resp listResponse
	if err := go_json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Data.Total != 1 || resp.Data.Activities[0].ID != 3 {
		t.Errorf("unexpected filter result: %+v", resp.Data)
	}
}

func TestHandleListActivitiesPagination(t *testing.T) {
	t.Parallel()

	h, _ := testHandler(t, sampleActivities())

	rec := httptest.NewRecorder()
	h.HandleListActivities(rec, httptest.NewRequest(http.MethodGet, "/api/activities?page=2&per_page=2", nil))

	var resp listResponse
	if err := go_json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Data.Total != 3 || len(resp.Data.Activities) != 1 {
		t.Errorf("page 2 of 2-per-page over 3 items should hold 1, got %d", len(resp.Data.Activities))
	}
}

func TestHandleListActivitiesBadParams(t *testing.T) {
	t.Parallel()

	h, _ := testHandler(t, sampleActivities())

	tests := []struct {
		name  string
		query string
	}{
		{"bad after", "?after=notadate"},
		{"bad page", "?page=0"},
		{"bad min_distance", "?min_distance=-5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := httptest.NewRecorder()
			h.HandleListActivities(rec, httptest.NewRequest(http.MethodGet, "/api/activities"+tt.query, nil))

			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestHandleGetActivityInvalidID(t *testing.T) {
	t.Parallel()

	h, _ := testHandler(t, sampleActivities())

	req := httptest.NewRequest(http.MethodGet, "/api/activities/abc", nil)
	req.SetPathValue("id", "abc")

	rec := httptest.NewRecorder()
	h.HandleGetActivity(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleStatsCachesSnapshot(t *testing.T) {
	t.Parallel()

	h, fake := testHandler(t, sampleActivities())

	for range 3 {
		rec := httptest.NewRecorder()
		h.HandleStats(rec, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
		}
	}

	// a short first page resolves ListAll in a single call; the two
	// later requests must be served from the cached snapshot
	if fake.listCalls != 1 {
		t.Errorf("stats should be served from cache after the first compute, got %d list calls", fake.listCalls)
	}
}

func TestHandleWeeklyStatsSlicesLastN(t *testing.T) {
	t.Parallel()

	base := time.Date(2024, 1, 1, 7, 0, 0, 0, time.UTC)
	var activities []strava.Activity
	for i := range 6 {
		start := base.AddDate(0, 0, 7*i)
		activities = append(activities, strava.Activity{
			ID: int64(i + 1), Type: strava.TypeRun,
			StartDate: start, StartDateLocal: start,
			Distance: 5000, MovingTime: 1500,
		})
	}

	h, _ := testHandler(t, activities)

	rec := httptest.NewRecorder()
	h.HandleWeeklyStats(rec, httptest.NewRequest(http.MethodGet, "/api/stats/weekly?weeks=2", nil))

	var resp struct {
		Data []struct {
			Label string `json:"label"`
		} `json:"data"`
	}
	if err := go_json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(resp.Data) != 2 {
		t.Errorf("expected the 2 most recent weeks, got %d buckets", len(resp.Data))
	}
}

func TestHandleHealth(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}
