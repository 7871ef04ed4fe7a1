package httpadapter

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/kirillkom/loan-decision-engine/internal/core/domain"
)

type adminHandlerFunc func(w http.ResponseWriter, r *http.Request, operator string)

// admin resolves the bearer token to an operator name. Without configured
// tokens every admin endpoint answers 401.
func (rt *Router) admin(next adminHandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		operator, ok := rt.operatorFor(r.Header.Get("Authorization"))
		if !ok {
			w.Header().Set("WWW-Authenticate", `Bearer realm="admin"`)
			writeError(w, r, domain.ErrUnauthorized)
			return
		}
		slog.InfoContext(r.Context(), "admin_request",
			"request_id", requestIDFromContext(r.Context()),
			"operator", operator,
			"method", r.Method,
			"path", r.URL.Path,
		)
		next(w, r, operator)
	}
}

func (rt *Router) operatorFor(headerValue string) (string, bool) {
	token, ok := bearerToken(headerValue)
	if !ok {
		return "", false
	}
	operator := ""
	for candidate, name := range rt.adminTokens {
		if subtle.ConstantTimeCompare([]byte(candidate), []byte(token)) == 1 {
			operator = name
		}
	}
	return operator, operator != ""
}

func bearerToken(headerValue string) (string, bool) {
	headerValue = strings.TrimSpace(headerValue)
	if headerValue == "" {
		return "", false
	}
	const bearerPrefix = "Bearer "
	if !strings.HasPrefix(headerValue, bearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(headerValue, bearerPrefix))
	return token, token != ""
}
