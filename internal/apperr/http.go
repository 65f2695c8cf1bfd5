package apperr

import (
	"context"
	"errors"
	"net/http"

	"github.com/dittrime/stride/internal/xhttp"
	"github.com/dittrime/stride/internal/xslog"
	go_json "github.com/goccy/go-json"
)

type errorBody struct {
	Type       string `json:"type"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after,omitempty"`
}

type errorResponse struct {
	Success bool      `json:"success"`
	Error   errorBody `json:"error"`
}

func WriteError(ctx context.Context, w http.ResponseWriter, err error) {
	var rlErr *RateLimitError
	if errors.As(err, &rlErr) {
		writeRateLimitError(ctx, w, rlErr)
		return
	}

	appErr := AsError(err)
	if appErr == nil {
		appErr = Internal("an unexpected error occurred", err)
	}

	logError(ctx, appErr.StatusCode, appErr)

	xhttp.SetHeaderContentTypeApplicationJSON(w)
	w.WriteHeader(appErr.StatusCode)
	_ = go_json.NewEncoder(w).Encode(errorResponse{
		Error: errorBody{Type: appErr.Code, Message: appErr.Message},
	})
}

func writeRateLimitError(ctx context.Context, w http.ResponseWriter, err *RateLimitError) {
	logError(ctx, err.StatusCode, err)

	xhttp.SetHeaderContentTypeApplicationJSON(w)
	xhttp.SetHeaderRetryAfter(w, err.RetryAfter)
	w.WriteHeader(err.StatusCode)
	_ = go_json.NewEncoder(w).Encode(errorResponse{
		Error: errorBody{
			Type:       err.Code,
			Message:    err.Message,
			RetryAfter: int(err.RetryAfter.Seconds()),
		},
	})
}

func logError(ctx context.Context, status int, err error) {
	logger := xslog.FromContext(ctx)
	switch status / 100 {
	case 5:
		logger.ErrorContext(ctx, "server error", xslog.HTTPStatus(status), xslog.Error(err))
	case 4:
		logger.WarnContext(ctx, "client error", xslog.HTTPStatus(status), xslog.Error(err))
	default:
		logger.InfoContext(ctx, "error response", xslog.HTTPStatus(status), xslog.Error(err))
	}
}
