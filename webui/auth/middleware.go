package auth

import (
	"net/http"
	"strconv"
	"strings"

	"aichat_backend/core"

	"go.uber.org/zap"
)

// Middleware requires a valid bearer token and attaches the user id to the
// request context with core.WithOwner.
type Middleware struct {
	tokens *TokenIssuer
	logger *zap.Logger
}

// NewMiddleware creates the bearer-token middleware. logger may be nil.
func NewMiddleware(tokens *TokenIssuer, logger *zap.Logger) *Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Middleware{tokens: tokens, logger: logger}
}

// Handler wraps next. Requests without a token, or with one that fails
// verification, get 401 {message}.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeMessage(w, http.StatusUnauthorized, "No token, authorization denied")
			return
		}

		userID, err := m.tokens.Verify(token)
		if err != nil {
			m.logger.Debug("rejected bearer token",
				zap.String("path", r.URL.Path),
				zap.Error(err),
			)
			writeMessage(w, http.StatusUnauthorized, "Token is not valid")
			return
		}

		ctx := core.WithOwner(r.Context(), strconv.FormatInt(userID, 10))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAuth is Handler for a HandlerFunc.
func (m *Middleware) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return m.Handler(next).ServeHTTP
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}
