package web

// errors.go turns submission failures into responses.
//
// Every failure is logged with its full detail and the request ID. What the
// client sees depends on how it asked:
//   - fetch requests from app.js and /api/ calls get {"error": msg, "code": ...}
//   - plain form posts get the whole page back with a notification and the
//     result set that was on screen before the failed submission
//
// The message comes from match.UserMessageFor, so server-reported messages
// pass through verbatim and transport failures show the generic text.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/JonMunkholm/ResumeMatch/internal/logging"
	"github.com/JonMunkholm/ResumeMatch/internal/match"
	"github.com/JonMunkholm/ResumeMatch/internal/matchclient"
	"github.com/JonMunkholm/ResumeMatch/internal/web/templates"
)

// fetchHeader marks requests made by app.js.
const fetchHeader = "X-Requested-With"

// ErrorResponse is the JSON body of a failed submission.
type ErrorResponse struct {
	Error  string `json:"error"`
	Action string `json:"action,omitempty"`
	Code   string `json:"code"`
}

// statusFor picks the response status for a submission error.
// Server-reported errors keep the upstream status.
func statusFor(err error) int {
	var se *match.ServerError
	if errors.As(err, &se) && se.Status >= 400 {
		return se.Status
	}
	if errors.Is(err, matchclient.ErrTooManyUploads) {
		return http.StatusServiceUnavailable
	}
	return http.StatusBadGateway
}

// respondSubmitError reports a failed submission. previous is the set the
// page was showing and is re-rendered unchanged on the no-script path.
func (s *Server) respondSubmitError(w http.ResponseWriter, r *http.Request, err error, previous *match.ResultSet) {
	msg := match.UserMessageFor(err)
	status := statusFor(err)

	logging.FromContext(r.Context()).Error("submission failed",
		"path", r.URL.Path,
		"status", status,
		"code", msg.Code,
		"error", err.Error(),
	)

	if isFetch(r) || wantsJSON(r) {
		writeJSONStatus(w, status, ErrorResponse{Error: msg.Message, Action: msg.Action, Code: msg.Code})
		return
	}

	s.renderPage(w, r, status, templates.PageParams{Results: previous, Notice: &msg})
}

// rateLimited is the 429 response for both rate limiters.
func (s *Server) rateLimited(w http.ResponseWriter, r *http.Request) {
	msg := match.UserMessage{
		Message: "Too many requests. Please wait a moment and try again.",
		Code:    "RATE01",
	}
	if isFetch(r) || wantsJSON(r) {
		writeJSONStatus(w, http.StatusTooManyRequests, ErrorResponse{Error: msg.Message, Code: msg.Code})
		return
	}
	http.Error(w, msg.Message, http.StatusTooManyRequests)
}

// isFetch reports whether the request came from app.js.
func isFetch(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get(fetchHeader), "fetch")
}

// wantsJSON checks if the client prefers a JSON response.
func wantsJSON(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}
	return strings.HasPrefix(r.URL.Path, "/api/")
}

// writeJSONStatus encodes v with the given status.
// Encoding errors are only logged since headers are already sent.
func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
