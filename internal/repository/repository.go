// Package repository materializes the paginated upstream activity
// collection into a single logical collection and normalizes raw records
// at the boundary.
package repository

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dittrime/stride/internal/client/strava"
	"github.com/dittrime/stride/internal/xslog"
	"github.com/twpayne/go-polyline"
)

// maxPages caps the pagination loop as a runaway guard:
// maxPages * MaxPerPage activities.
const maxPages = 100

type Repository struct {
	activities strava.ActivityService
	logger     *slog.Logger
}

func New(activities strava.ActivityService, logger *slog.Logger) *Repository {
	return &Repository{
		activities: activities,
		logger:     logger,
	}
}

// ListAll fetches the complete activity history, resolving pagination
// into one collection ordered most recent first. A short page signals
// exhaustion; an empty first page yields an empty collection with no
// further upstream calls. Duplicate IDs across page boundaries are
// dropped.
func (r *Repository) ListAll(ctx context.Context) ([]strava.Activity, error) {
	var all []strava.Activity
	seen := make(map[int64]struct{})

	for page := 1; page <= maxPages; page++ {
		batch, err := r.activities.List(ctx, &strava.ListParams{
			Page:    page,
			PerPage: strava.MaxPerPage,
		})
		if err != nil {
			return nil, fmt.Errorf("listing activities page %d: %w", page, err)
		}

		for _, a := range normalize(batch) {
			if _, ok := seen[a.ID]; ok {
				continue
			}
			seen[a.ID] = struct{}{}
			all = append(all, a)
		}

		if len(batch) < strava.MaxPerPage {
			break
		}
	}

	r.logger.DebugContext(ctx, "materialized activity collection", xslog.Count(len(all)))
	return all, nil
}

// ActivityDetail carries the decoded map route alongside the raw detail
// so the presentation layer never touches encoded polylines.
type ActivityDetail struct {
	strava.DetailedActivity
	Route [][]float64 `json:"route,omitempty"` // [lat, lng] pairs
}

func (r *Repository) Get(ctx context.Context, id int64) (*ActivityDetail, error) {
	activity, err := r.activities.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetching activity %d: %w", id, err)
	}

	detail := &ActivityDetail{DetailedActivity: *activity}
	if activity.Map != nil {
		encoded := activity.Map.Polyline
		if encoded == "" {
			encoded = activity.Map.SummaryPolyline
		}
		route, err := decodeRoute(encoded)
		if err != nil {
			r.logger.WarnContext(ctx, "failed to decode polyline",
				xslog.ActivityID(id), xslog.Error(err))
		} else {
			detail.Route = route
		}
	}

	return detail, nil
}

// normalize rejects malformed records and collapses null-shaped optional
// fields so downstream consumers see well-defined optionals.
func normalize(activities []strava.Activity) []strava.Activity {
	out := activities[:0]
	for _, a := range activities {
		if a.ID == 0 || a.StartDate.IsZero() {
			continue
		}
		if a.StartDateLocal.IsZero() {
			a.StartDateLocal = a.StartDate
		}
		if a.Type == "" {
			a.Type = "Unknown"
		}
		if a.Map != nil && a.Map.SummaryPolyline == "" && a.Map.Polyline == "" {
			a.Map = nil
		}
		out = append(out, a)
	}
	return out
}

func decodeRoute(encoded string) ([][]float64, error) {
	if encoded == "" {
		return nil, nil
	}
	coords, _, err := polyline.DecodeCoords([]byte(encoded))
	if err != nil {
		return nil, err
	}
	return coords, nil
}
