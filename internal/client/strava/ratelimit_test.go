package strava

import (
	"net/http"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestParseRateLimitHeaders(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		limit   string
		usage   string
		want    *Usage
		wantErr bool
	}{
		{
			name:  "typical windows",
			limit: "100,1000",
			usage: "27,312",
			want: &Usage{
				ShortTermUsage: 27,
				ShortTermLimit: 100,
				DailyUsage:     312,
				DailyLimit:     1000,
			},
		},
		{
			name:  "spaces around values",
			limit: "100, 1000",
			usage: "5, 10",
			want: &Usage{
				ShortTermUsage: 5,
				ShortTermLimit: 100,
				DailyUsage:     10,
				DailyLimit:     1000,
			},
		},
		{
			name: "absent headers",
			want: nil,
		},
		{
			name:  "usage missing",
			limit: "100,1000",
			want:  nil,
		},
		{
			name:    "malformed pair",
			limit:   "100",
			usage:   "27,312",
			wantErr: true,
		},
		{
			name:    "non-numeric",
			limit:   "a,b",
			usage:   "27,312",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			headers := http.Header{}
			if tt.limit != "" {
				headers.Set("X-RateLimit-Limit", tt.limit)
			}
			if tt.usage != "" {
				headers.Set("X-RateLimit-Usage", tt.usage)
			}

			got, err := ParseRateLimitHeaders(headers)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("usage mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseRetryAfter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		header string
		want   time.Duration
	}{
		{"present", "120", 120 * time.Second},
		{"absent defaults", "", 60 * time.Second},
		{"garbage defaults", "soon", 60 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			headers := http.Header{}
			if tt.header != "" {
				headers.Set("Retry-After", tt.header)
			}
			if got := parseRetryAfter(headers); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBudgetObserve(t *testing.T) {
	t.Parallel()

	b := NewBudget()

	if _, _, ok := b.Snapshot(); ok {
		t.Fatal("fresh budget should have no observation")
	}

	headers := http.Header{}
	headers.Set("X-RateLimit-Limit", "100,1000")
	headers.Set("X-RateLimit-Usage", "42,500")
	b.Observe(headers)

	usage, _, ok := b.Snapshot()
	if !ok {
		t.Fatal("expected an observation")
	}
	if usage.ShortTermUsage != 42 || usage.DailyUsage != 500 {
		t.Errorf("unexpected usage: %+v", usage)
	}

	// headerless responses must not clobber the last observation
	b.Observe(http.Header{})
	usage, _, ok = b.Snapshot()
	if !ok || usage.ShortTermUsage != 42 {
		t.Errorf("observation lost after headerless response: %+v ok=%v", usage, ok)
	}
}
