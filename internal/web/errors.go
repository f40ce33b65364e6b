package web

// errors.go maps failures to responses. The technical error is logged with
// the request id; clients get the operator message from table.MapError, or
// a short message for routing and concurrency errors.

import (
	"errors"
	"net/http"
	"os"

	"github.com/JonMunkholm/facility-etl/internal/logging"
	"github.com/JonMunkholm/facility-etl/internal/publish"
	"github.com/JonMunkholm/facility-etl/internal/table"
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

type notFoundError struct {
	what string
	err  error
}

func (e *notFoundError) Error() string { return e.what + ": " + e.err.Error() }
func (e *notFoundError) Unwrap() error { return e.err }

// respond maps err to a status and an ErrorResponse.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := classify(err)

	logging.FromContext(r.Context()).Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", resp.Code,
	)
	writeJSON(w, status, resp)
}

func classify(err error) (int, ErrorResponse) {
	var nf *notFoundError
	switch {
	case errors.As(err, &nf):
		return http.StatusNotFound, ErrorResponse{
			Error: "not_found", Message: nf.Error(), Code: "WEB404",
		}
	case errors.Is(err, publish.ErrRunInProgress):
		return http.StatusConflict, ErrorResponse{
			Error: "conflict", Message: err.Error(), Action: "Retry once the running publication has finished", Code: "RUN409",
		}
	case errors.Is(err, os.ErrNotExist):
		msg := table.MapError(err)
		return http.StatusNotFound, ErrorResponse{
			Error: "not_found", Message: msg.Message, Action: "Run the country transform or publication first", Code: msg.Code,
		}
	}

	msg := table.MapError(err)
	status := http.StatusInternalServerError
	if msg.Code == "FMT001" {
		status = http.StatusUnprocessableEntity
	}
	return status, ErrorResponse{Error: http.StatusText(status), Message: msg.Message, Action: msg.Action, Code: msg.Code}
}
