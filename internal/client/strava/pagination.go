package strava

import (
	"net/url"
	"strconv"
	"time"
)

// MaxPerPage is the largest page size the upstream accepts.
const MaxPerPage = 200

type ListParams struct {
	Page    int
	PerPage int
	Before  *time.Time
	After   *time.Time
}

func (p *ListParams) values() url.Values {
	if p == nil {
		return nil
	}

	v := make(url.Values)

	if p.Page > 0 {
		v.Set("page", strconv.Itoa(p.Page))
	}
	if p.PerPage > 0 {
		v.Set("per_page", strconv.Itoa(min(p.PerPage, MaxPerPage)))
	}
	if p.Before != nil {
		v.Set("before", strconv.FormatInt(p.Before.Unix(), 10))
	}
	if p.After != nil {
		v.Set("after", strconv.FormatInt(p.After.Unix(), 10))
	}

	return v
}
