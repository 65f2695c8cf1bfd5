package strava

import (
	"fmt"

	go_json "github.com/goccy/go-json"
)

type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("strava api: %d %s", e.StatusCode, e.Message)
}

func parseAPIError(statusCode int, body []byte) error {
	var errResp struct {
		Message string `json:"message"`
		Errors  []struct {
			Resource string `json:"resource"`
			Field    string `json:"field"`
			Code     string `json:"code"`
		} `json:"errors"`
	}

	if err := go_json.Unmarshal(body, &errResp); err != nil || errResp.Message == "" {
		return &APIError{StatusCode: statusCode, Message: string(body)}
	}

	msg := errResp.Message
	if len(errResp.Errors) > 0 {
		first := errResp.Errors[0]
		msg = fmt.Sprintf("%s (%s.%s: %s)", msg, first.Resource, first.Field, first.Code)
	}

	return &APIError{StatusCode: statusCode, Message: msg}
}
