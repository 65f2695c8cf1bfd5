// Package stats derives dashboard aggregates from an in-memory activity
// collection. Compute is pure: same input, same Snapshot, no I/O.
package stats

import (
	"sort"
	"time"

	"github.com/dittrime/stride/internal/client/strava"
)

type Snapshot struct {
	Totals   Totals                 `json:"totals"`
	Averages Averages               `json:"averages"`
	ByType   map[string]TypeSummary `json:"by_type"`
	Weekly   []Bucket               `json:"weekly"`
	Monthly  []Bucket               `json:"monthly"`
	Yearly   []Bucket               `json:"yearly"`
	Charts   ChartData              `json:"charts"`
	Records  Records                `json:"records"`
}

type Totals struct {
	Distance      float64 `json:"total_distance"`  // meters
	MovingTime    int     `json:"total_time"`      // seconds
	ElevationGain float64 `json:"total_elevation"` // meters
	Count         int     `json:"activity_count"`
}

type Averages struct {
	Distance float64 `json:"avg_distance"` // meters
	Speed    float64 `json:"avg_speed"`    // m/s, time-weighted
	Pace     float64 `json:"avg_pace"`     // seconds per km
	Duration float64 `json:"avg_duration"` // seconds
}

type TypeSummary struct {
	Count         int     `json:"count"`
	Distance      float64 `json:"distance"`
	MovingTime    int     `json:"moving_time"`
	ElevationGain float64 `json:"elevation_gain"`
}

// Bucket is one calendar grouping (week, month, or year) of the scan.
// Only buckets containing at least one activity are emitted.
type Bucket struct {
	Label         string    `json:"label"`
	Start         time.Time `json:"start"`
	Count         int       `json:"count"`
	Distance      float64   `json:"distance"`
	MovingTime    int       `json:"moving_time"`
	ElevationGain float64   `json:"elevation_gain"`
}

type ChartData struct {
	DistanceOverTime      []DistancePoint `json:"distance_over_time"`
	ActivityTypeBreakdown map[string]int  `json:"activity_type_breakdown"`
	PaceTrends            []PacePoint     `json:"pace_trends"`
}

type DistancePoint struct {
	Date     string  `json:"date"`     // YYYY-MM-DD, local
	Distance float64 `json:"distance"` // kilometers
	Type     string  `json:"type"`
}

type PacePoint struct {
	Date string  `json:"date"` // YYYY-MM-DD, local
	Pace float64 `json:"pace"` // seconds per km
}

type Records struct {
	LongestDistance  *Record `json:"longest_distance,omitempty"`
	FastestPace      *Record `json:"fastest_pace,omitempty"`
	HighestElevation *Record `json:"highest_elevation,omitempty"`
	LongestDuration  *Record `json:"longest_duration,omitempty"`
}

// Record points at the activity that set the mark. Value carries the
// metric in its native unit (meters, seconds per km, or seconds).
type Record struct {
	ActivityID int64     `json:"activity_id"`
	Name       string    `json:"name"`
	Date       time.Time `json:"date"`
	Value      float64   `json:"value"`
}

// Compute aggregates the collection into a Snapshot. The input slice is
// not mutated; ordering of the input does not affect the output.
func Compute(activities []strava.Activity) Snapshot {
	ordered := chronological(activities)

	snap := Snapshot{
		ByType: make(map[string]TypeSummary),
		Charts: ChartData{
			ActivityTypeBreakdown: make(map[string]int),
		},
	}

	weekly := make(map[time.Time]*Bucket)
	monthly := make(map[time.Time]*Bucket)
	yearly := make(map[time.Time]*Bucket)

	for _, a := range ordered {
		snap.Totals.Distance += a.Distance
		snap.Totals.MovingTime += a.MovingTime
		snap.Totals.ElevationGain += a.TotalElevationGain
		snap.Totals.Count++

		ts := snap.ByType[string(a.Type)]
		ts.Count++
		ts.Distance += a.Distance
		ts.MovingTime += a.MovingTime
		ts.ElevationGain += a.TotalElevationGain
		snap.ByType[string(a.Type)] = ts

		local := a.StartDateLocal
		accumulate(weekly, weekStart(local), a)
		accumulate(monthly, monthStart(local), a)
		accumulate(yearly, yearStart(local), a)

		snap.Charts.DistanceOverTime = append(snap.Charts.DistanceOverTime, DistancePoint{
			Date:     local.Format("2006-01-02"),
			Distance: a.Distance / 1000,
			Type:     string(a.Type),
		})
		snap.Charts.ActivityTypeBreakdown[string(a.Type)]++

		if a.Type == strava.TypeRun {
			if pace, ok := paceOf(a); ok {
				snap.Charts.PaceTrends = append(snap.Charts.PaceTrends, PacePoint{
					Date: local.Format("2006-01-02"),
					Pace: pace,
				})
			}
		}

		updateRecords(&snap.Records, a)
	}

	if snap.Totals.Count > 0 {
		n := float64(snap.Totals.Count)
		snap.Averages.Distance = snap.Totals.Distance / n
		snap.Averages.Duration = float64(snap.Totals.MovingTime) / n
		if snap.Totals.MovingTime > 0 {
			snap.Averages.Speed = snap.Totals.Distance / float64(snap.Totals.MovingTime)
		}
		if snap.Totals.Distance > 0 {
			snap.Averages.Pace = float64(snap.Totals.MovingTime) / (snap.Totals.Distance / 1000)
		}
	}

	snap.Weekly = collect(weekly, weekLabel)
	snap.Monthly = collect(monthly, monthLabel)
	snap.Yearly = collect(yearly, yearLabel)

	return snap
}

// chronological returns a copy sorted ascending by start instant, ID as
// the tiebreaker, so record scans and chart series are deterministic.
func chronological(activities []strava.Activity) []strava.Activity {
	ordered := make([]strava.Activity, len(activities))
	copy(ordered, activities)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].StartDate.Equal(ordered[j].StartDate) {
			return ordered[i].StartDate.Before(ordered[j].StartDate)
		}
		return ordered[i].ID < ordered[j].ID
	})
	return ordered
}

func accumulate(buckets map[time.Time]*Bucket, start time.Time, a strava.Activity) {
	b, ok := buckets[start]
	if !ok {
		b = &Bucket{Start: start}
		buckets[start] = b
	}
	b.Count++
	b.Distance += a.Distance
	b.MovingTime += a.MovingTime
	b.ElevationGain += a.TotalElevationGain
}

func collect(buckets map[time.Time]*Bucket, label func(time.Time) string) []Bucket {
	out := make([]Bucket, 0, len(buckets))
	for _, b := range buckets {
		b.Label = label(b.Start)
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

// weekStart truncates to the Monday of the activity's local week.
func weekStart(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	y, m, d := t.AddDate(0, 0, -offset).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func monthStart(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}

func yearStart(t time.Time) time.Time {
	return time.Date(t.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
}

func weekLabel(start time.Time) string  { return "Week of " + start.Format("Jan 02") }
func monthLabel(start time.Time) string { return start.Format("January 2006") }
func yearLabel(start time.Time) string  { return start.Format("2006") }

// paceOf reports the pace in seconds per km, valid only when both the
// distance and the moving time are positive.
func paceOf(a strava.Activity) (float64, bool) {
	if a.Distance <= 0 || a.MovingTime <= 0 {
		return 0, false
	}
	return float64(a.MovingTime) / (a.Distance / 1000), true
}

// updateRecords replaces a record only on strict improvement. Scanning
// chronologically ascending means the earliest activity keeps a tied mark.
func updateRecords(r *Records, a strava.Activity) {
	if a.Distance > 0 && (r.LongestDistance == nil || a.Distance > r.LongestDistance.Value) {
		r.LongestDistance = record(a, a.Distance)
	}
	if a.TotalElevationGain > 0 && (r.HighestElevation == nil || a.TotalElevationGain > r.HighestElevation.Value) {
		r.HighestElevation = record(a, a.TotalElevationGain)
	}
	if a.MovingTime > 0 && (r.LongestDuration == nil || float64(a.MovingTime) > r.LongestDuration.Value) {
		r.LongestDuration = record(a, float64(a.MovingTime))
	}
	if a.Type == strava.TypeRun {
		if pace, ok := paceOf(a); ok && (r.FastestPace == nil || pace < r.FastestPace.Value) {
			r.FastestPace = record(a, pace)
		}
	}
}

func record(a strava.Activity, value float64) *Record {
	return &Record{
		ActivityID: a.ID,
		Name:       a.Name,
		Date:       a.StartDate,
		Value:      value,
	}
}
