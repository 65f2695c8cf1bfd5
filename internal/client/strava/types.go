package strava

import "time"

type ActivityType string

const (
	TypeRun  ActivityType = "Run"
	TypeRide ActivityType = "Ride"
	TypeSwim ActivityType = "Swim"
	TypeWalk ActivityType = "Walk"
	TypeHike ActivityType = "Hike"
)

// Activity is the summary record returned by the athlete activities list.
// Immutable once fetched; identified by ID.
type Activity struct {
	ID                 int64        `json:"id"`
	Type               ActivityType `json:"type"`
	Name               string       `json:"name"`
	StartDate          time.Time    `json:"start_date"`
	StartDateLocal     time.Time    `json:"start_date_local"`
	Distance           float64      `json:"distance"`             // meters
	MovingTime         int          `json:"moving_time"`          // seconds
	ElapsedTime        int          `json:"elapsed_time"`         // seconds
	TotalElevationGain float64      `json:"total_elevation_gain"` // meters
	AverageSpeed       float64      `json:"average_speed"`        // m/s
	MaxSpeed           float64      `json:"max_speed"`            // m/s
	Map                *ActivityMap `json:"map,omitempty"`
}

type ActivityMap struct {
	ID              string `json:"id"`
	SummaryPolyline string `json:"summary_polyline"`
	Polyline        string `json:"polyline,omitempty"`
}

// DetailedActivity is the richer single-activity projection.
type DetailedActivity struct {
	Activity
	Description      string   `json:"description"`
	Calories         float64  `json:"calories"`
	AverageHeartrate *float64 `json:"average_heartrate,omitempty"`
	MaxHeartrate     *float64 `json:"max_heartrate,omitempty"`
	DeviceName       string   `json:"device_name,omitempty"`
	GearID           string   `json:"gear_id,omitempty"`
}

type Athlete struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"firstname"`
	LastName  string `json:"lastname"`
	City      string `json:"city"`
	Country   string `json:"country"`
}

type AthleteStats struct {
	RecentRunTotals  StatsTotals `json:"recent_run_totals"`
	AllRunTotals     StatsTotals `json:"all_run_totals"`
	RecentRideTotals StatsTotals `json:"recent_ride_totals"`
	AllRideTotals    StatsTotals `json:"all_ride_totals"`
	AllSwimTotals    StatsTotals `json:"all_swim_totals"`
}

type StatsTotals struct {
	Count         int     `json:"count"`
	Distance      float64 `json:"distance"`
	MovingTime    int     `json:"moving_time"`
	ElevationGain float64 `json:"elevation_gain"`
}
