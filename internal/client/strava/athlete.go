package strava

import (
	"context"
	"strconv"
)

type AthleteService interface {
	Get(ctx context.Context) (*Athlete, error)
	Stats(ctx context.Context, athleteID int64) (*AthleteStats, error)
}

type athleteService struct {
	client *Client
}

func (s *athleteService) Get(ctx context.Context) (*Athlete, error) {
	const route = "/athlete"

	var athlete Athlete
	if err := s.client.get(ctx, route, nil, s.client.ttl.ActivityDetail, &athlete); err != nil {
		return nil, err
	}
	return &athlete, nil
}

func (s *athleteService) Stats(ctx context.Context, athleteID int64) (*AthleteStats, error) {
	path := "/athletes/" + strconv.FormatInt(athleteID, 10) + "/stats"

	var stats AthleteStats
	if err := s.client.get(ctx, path, nil, s.client.ttl.Stats, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}
