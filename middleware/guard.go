package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/vrental/gatewayauth"
)

type authResultContextKey struct{}

// ResultFromContext returns the identity stored by Guard or RequireRole.
func ResultFromContext(ctx context.Context) (gatewayauth.Result, bool) {
	res, ok := ctx.Value(authResultContextKey{}).(gatewayauth.Result)
	return res, ok
}

// Guard rejects unauthenticated requests with 401.
func Guard(auth *gatewayauth.Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if auth == nil {
				WriteFailure(w, http.StatusUnauthorized, "Authentication failed")
				return
			}

			r = withClientIP(auth, r)
			res := auth.AuthenticateHTTP(r)
			if !res.Success {
				WriteFailure(w, http.StatusUnauthorized, res.Message)
				return
			}

			ctx := context.WithValue(r.Context(), authResultContextKey{}, res)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects unauthenticated requests with 401 and authenticated
// requests whose role is not in roles with 403.
func RequireRole(auth *gatewayauth.Authenticator, roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if auth == nil {
				WriteFailure(w, http.StatusUnauthorized, "Authentication failed")
				return
			}

			r = withClientIP(auth, r)
			res, err := auth.RequireRoleHTTP(r, roles...)
			if err != nil {
				WriteFailure(w, StatusFor(err), gatewayauth.Message(err))
				return
			}

			ctx := context.WithValue(r.Context(), authResultContextKey{}, res)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// StatusFor maps an authentication error to its HTTP status.
func StatusFor(err error) int {
	if errors.Is(err, gatewayauth.ErrForbidden) {
		return http.StatusForbidden
	}
	return http.StatusUnauthorized
}

type failureBody struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// WriteFailure writes the JSON failure envelope.
func WriteFailure(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(failureBody{Success: false, Message: message})
}

func withClientIP(auth *gatewayauth.Authenticator, r *http.Request) *http.Request {
	if gatewayauth.ClientIPFromContext(r.Context()) != "" {
		return r
	}
	return r.WithContext(gatewayauth.WithClientIP(r.Context(), auth.ResolveClientIP(r)))
}
