package repository

import (
	"strings"
	"time"

	"github.com/dittrime/stride/internal/client/strava"
)

// Filter is applied as a pure post-fetch transform: the upstream does
// not support this filter set natively.
type Filter struct {
	Type        strava.ActivityType
	After       *time.Time
	Before      *time.Time
	MinDistance *float64 // meters
	MaxDistance *float64 // meters
	Search      string   // case-insensitive name match
}

func (f Filter) IsZero() bool {
	return f.Type == "" && f.After == nil && f.Before == nil &&
		f.MinDistance == nil && f.MaxDistance == nil && f.Search == ""
}

func (f Filter) Apply(activities []strava.Activity) []strava.Activity {
	if f.IsZero() {
		return activities
	}

	search := strings.ToLower(f.Search)

	filtered := make([]strava.Activity, 0, len(activities))
	for _, a := range activities {
		if f.Type != "" && a.Type != f.Type {
			continue
		}
		if f.After != nil && a.StartDate.Before(*f.After) {
			continue
		}
		if f.Before != nil && a.StartDate.After(*f.Before) {
			continue
		}
		if f.MinDistance != nil && a.Distance < *f.MinDistance {
			continue
		}
		if f.MaxDistance != nil && a.Distance > *f.MaxDistance {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(a.Name), search) {
			continue
		}
		filtered = append(filtered, a)
	}
	return filtered
}
