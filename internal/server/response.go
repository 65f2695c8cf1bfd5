package server

import (
	"net/http"

	"github.com/dittrime/stride/internal/xhttp"
)

// envelope is the success shape for every API response. Errors go
// through apperr.WriteError, which emits the matching failure shape.
type envelope struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

func writeData(w http.ResponseWriter, data any) {
	xhttp.WriteOK(w, envelope{Success: true, Data: data})
}
