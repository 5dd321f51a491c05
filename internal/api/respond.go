package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5/middleware"

	ierr "github.com/seacatering/subscription-service/internal/errors"
)

const maxBodyBytes = 1 << 20

type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *errorBody  `json:"error,omitempty"`
}

type errorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithData(w http.ResponseWriter, code int, data interface{}) {
	respondWithJSON(w, code, envelope{Success: true, Data: data})
}

var fallbackMessages = map[int]string{
	http.StatusBadRequest:          "Invalid request.",
	http.StatusUnauthorized:        "Please sign in to continue.",
	http.StatusForbidden:           "You do not have permission to perform this action.",
	http.StatusNotFound:            "Resource not found.",
	http.StatusConflict:            "The request conflicts with the current state. Please refresh and try again.",
	http.StatusTooManyRequests:     "Request rejected for security reasons. Please wait a few minutes and try again.",
	http.StatusInternalServerError: "Something went wrong. Please try again.",
}

// respondWithError maps err onto its status and writes the error envelope.
// Server-side failures are logged with the request id and never leak details.
func (h *Handler) respondWithError(w http.ResponseWriter, r *http.Request, err error) {
	status := ierr.HTTPStatusFromErr(err)
	body := &errorBody{
		Code:    ierr.CodeFromErr(err),
		Message: ierr.DisplayMessage(err, fallbackMessages[status]),
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			"request_id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		if !ierr.IsPersistence(err) {
			body.Message = fallbackMessages[http.StatusInternalServerError]
		}
	} else if details := ierr.ReportableDetails(err); len(details) > 0 {
		body.Details = details
	}

	if status == http.StatusTooManyRequests && h.retryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(h.retryAfter.Seconds())))
	}
	respondWithJSON(w, status, envelope{Success: false, Error: body})
}

// decodeJSON reads a JSON request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return ierr.WithError(err).
				WithHint("Request body is required.").
				Mark(ierr.ErrValidation)
		}
		return ierr.WithError(err).
			WithHint("Invalid request body.").
			Mark(ierr.ErrValidation)
	}
	return nil
}
