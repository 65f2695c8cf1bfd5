package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/dittrime/stride/internal/apperr"
	"github.com/dittrime/stride/internal/cache"
	"github.com/dittrime/stride/internal/client/strava"
	"github.com/dittrime/stride/internal/repository"
	"github.com/dittrime/stride/internal/stats"
	"github.com/dittrime/stride/internal/xslog"
	go_json "github.com/goccy/go-json"
)

const (
	defaultPerPage = 30
	maxPerPage     = 200
)

type Handler struct {
	repo      *repository.Repository
	client    *strava.Client
	cache     cache.Store
	statsTTL  time.Duration
	athleteID func() int64
}

func NewHandler(repo *repository.Repository, client *strava.Client, store cache.Store, statsTTL time.Duration, athleteID func() int64) *Handler {
	return &Handler{
		repo:      repo,
		client:    client,
		cache:     store,
		statsTTL:  statsTTL,
		athleteID: athleteID,
	}
}

func (h *Handler) HandleListActivities(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		apperr.WriteError(r.Context(), w, err)
		return
	}

	activities, err := h.repo.ListAll(r.Context())
	if err != nil {
		apperr.WriteError(r.Context(), w, err)
		return
	}

	filtered := filter.Apply(activities)
	page, perPage, err := parsePagination(r)
	if err != nil {
		apperr.WriteError(r.Context(), w, err)
		return
	}

	start := (page - 1) * perPage
	end := min(start+perPage, len(filtered))
	if start > len(filtered) {
		start, end = len(filtered), len(filtered)
	}

	writeData(w, map[string]any{
		"activities": filtered[start:end],
		"page":       page,
		"per_page":   perPage,
		"total":      len(filtered),
	})
}

func (h *Handler) HandleGetActivity(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		apperr.WriteError(r.Context(), w, apperr.BadRequest("invalid activity id"))
		return
	}

	detail, err := h.repo.Get(r.Context(), id)
	if err != nil {
		var apiErr *strava.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			apperr.WriteError(r.Context(), w, apperr.NotFound("activity not found"))
			return
		}
		apperr.WriteError(r.Context(), w, err)
		return
	}

	writeData(w, detail)
}

func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	snap, err := h.snapshot(r.Context())
	if err != nil {
		apperr.WriteError(r.Context(), w, err)
		return
	}
	writeData(w, snap)
}

func (h *Handler) HandleWeeklyStats(w http.ResponseWriter, r *http.Request) {
	h.handleBuckets(w, r, "weeks", func(s stats.Snapshot) []stats.Bucket { return s.Weekly })
}

func (h *Handler) HandleMonthlyStats(w http.ResponseWriter, r *http.Request) {
	h.handleBuckets(w, r, "months", func(s stats.Snapshot) []stats.Bucket { return s.Monthly })
}

func (h *Handler) handleBuckets(w http.ResponseWriter, r *http.Request, param string, pick func(stats.Snapshot) []stats.Bucket) {
	n, err := parsePositiveInt(r, param, 12)
	if err != nil {
		apperr.WriteError(r.Context(), w, err)
		return
	}

	snap, err := h.snapshot(r.Context())
	if err != nil {
		apperr.WriteError(r.Context(), w, err)
		return
	}

	buckets := pick(snap)
	if len(buckets) > n {
		buckets = buckets[len(buckets)-n:]
	}
	writeData(w, buckets)
}

// HandleRefresh drops every cached entry so the next read round-trips
// upstream. Does not itself call upstream.
func (h *Handler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := h.client.InvalidateAll(r.Context()); err != nil {
		apperr.WriteError(r.Context(), w, err)
		return
	}
	writeData(w, map[string]string{"status": "cache cleared"})
}

func (h *Handler) HandleLimits(w http.ResponseWriter, r *http.Request) {
	usage, observedAt, ok := h.client.Budget().Snapshot()
	if !ok {
		writeData(w, map[string]any{"observed": false})
		return
	}
	writeData(w, map[string]any{
		"observed":         true,
		"observed_at":      observedAt,
		"short_term_usage": usage.ShortTermUsage,
		"short_term_limit": usage.ShortTermLimit,
		"daily_usage":      usage.DailyUsage,
		"daily_limit":      usage.DailyLimit,
	})
}

func HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeData(w, map[string]string{"status": "ok"})
}

// snapshot computes the stats view, memoized through the response cache
// under the athlete-scoped stats key.
func (h *Handler) snapshot(ctx context.Context) (stats.Snapshot, error) {
	key := cache.Key(h.athleteID(), "stats", nil)

	if h.cache != nil {
		if data, err := h.cache.Get(ctx, key); err == nil {
			var snap stats.Snapshot
			if err := go_json.Unmarshal(data, &snap); err == nil {
				return snap, nil
			}
		}
	}

	activities, err := h.repo.ListAll(ctx)
	if err != nil {
		return stats.Snapshot{}, err
	}
	snap := stats.Compute(activities)

	if h.cache != nil {
		data, err := go_json.Marshal(snap)
		if err == nil {
			if err := h.cache.Set(ctx, key, data, h.statsTTL); err != nil {
				xslog.FromContext(ctx).WarnContext(ctx, "failed to cache stats",
					xslog.CacheKey(key), xslog.Error(err))
			}
		}
	}

	return snap, nil
}

func parseFilter(r *http.Request) (repository.Filter, error) {
	q := r.URL.Query()
	var f repository.Filter

	f.Type = strava.ActivityType(q.Get("type"))
	f.Search = q.Get("search")

	if v := q.Get("after"); v != "" {
		t, err := parseDate(v)
		if err != nil {
			return f, apperr.BadRequest("invalid after date")
		}
		f.After = &t
	}
	if v := q.Get("before"); v != "" {
		t, err := parseDate(v)
		if err != nil {
			return f, apperr.BadRequest("invalid before date")
		}
		// inclusive through the end of the named day
		t = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
		f.Before = &t
	}
	if v := q.Get("min_distance"); v != "" {
		d, err := strconv.ParseFloat(v, 64)
		if err != nil || d < 0 {
			return f, apperr.BadRequest("invalid min_distance")
		}
		f.MinDistance = &d
	}
	if v := q.Get("max_distance"); v != "" {
		d, err := strconv.ParseFloat(v, 64)
		if err != nil || d < 0 {
			return f, apperr.BadRequest("invalid max_distance")
		}
		f.MaxDistance = &d
	}

	return f, nil
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

func parsePagination(r *http.Request) (page, perPage int, err error) {
	page, err = parsePositiveInt(r, "page", 1)
	if err != nil {
		return 0, 0, err
	}
	perPage, err = parsePositiveInt(r, "per_page", defaultPerPage)
	if err != nil {
		return 0, 0, err
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	return page, perPage, nil
}

func parsePositiveInt(r *http.Request, param string, fallback int) (int, error) {
	v := r.URL.Query().Get(param)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, apperr.BadRequest("invalid "+param+" parameter")
	}
	return n, nil
}
