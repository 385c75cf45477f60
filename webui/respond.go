package webui

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

type errorBody struct {
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// clientError is implemented by the pipeline and chat error types.
type clientError interface {
	error
	HTTPStatus() int
	UserMessage() string
	Details() string
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Message: message})
}

// writeError renders err as the single JSON error object for the request.
// Details are only included in dev mode. Unclassified errors become 500
// with fallback as the message.
func (s *Server) writeError(w http.ResponseWriter, err error, fallback string) {
	var ce clientError
	if errors.As(err, &ce) {
		body := errorBody{Message: ce.UserMessage()}
		if s.config.DevMode {
			body.Details = ce.Details()
		}
		writeJSON(w, ce.HTTPStatus(), body)
		return
	}

	s.logger.Error("unclassified handler error", zap.Error(err))
	body := errorBody{Message: fallback}
	if s.config.DevMode {
		body.Details = err.Error()
	}
	writeJSON(w, http.StatusInternalServerError, body)
}

func toString(v interface{}) string {
	if err, ok := v.(error); ok {
		return err.Error()
	}
	return fmt.Sprint(v)
}
