package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"

	"github.com/mentorloop/authcore"
	"github.com/mentorloop/authcore/middleware"
	"go.uber.org/zap"
)

type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

// writeError renders err with its generic public message. Details of server-side failures
// only reach the log.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := middleware.StatusCode(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", requestID(r)),
			zap.Error(err),
		)
	}
	if status == http.StatusTooManyRequests {
		w.Header().Set("Retry-After", "60")
	}
	writeJSON(w, status, envelope{Success: false, Error: authcore.PublicMessage(authcore.KindOf(err))})
}

// decodeJSON reads a bounded JSON body. Any decoding problem is malformed input.
func decodeJSON(w http.ResponseWriter, r *http.Request, out any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		return authcore.ErrMalformedInput
	}
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return authcore.ErrMalformedInput
	}
	return nil
}

// withRequestContext attaches client IP and user agent for audit events. chi's RealIP has
// already rewritten RemoteAddr from forwarding headers.
func withRequestContext(r *http.Request) *http.Request {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	ctx := authcore.WithClientIP(r.Context(), host)
	ctx = authcore.WithUserAgent(ctx, r.UserAgent())
	return r.WithContext(ctx)
}
