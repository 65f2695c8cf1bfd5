package strava

import (
	"context"
	"strconv"
)

type ActivityService interface {
	// List returns one page of the athlete's activities, most recent
	// first as ordered by the upstream.
	List(ctx context.Context, params *ListParams) ([]Activity, error)

	// Get returns the detailed single-activity projection.
	Get(ctx context.Context, id int64) (*DetailedActivity, error)
}

type activityService struct {
	client *Client
}

func (s *activityService) List(ctx context.Context, params *ListParams) ([]Activity, error) {
	const route = "/athlete/activities"

	var activities []Activity
	if err := s.client.get(ctx, route, params.values(), s.client.ttl.ActivityList, &activities); err != nil {
		return nil, err
	}
	return activities, nil
}

func (s *activityService) Get(ctx context.Context, id int64) (*DetailedActivity, error) {
	path := "/activities/" + strconv.FormatInt(id, 10)

	var activity DetailedActivity
	if err := s.client.get(ctx, path, nil, s.client.ttl.ActivityDetail, &activity); err != nil {
		return nil, err
	}
	return &activity, nil
}
