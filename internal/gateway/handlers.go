package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/netip"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/vrental/gatewayauth"
	"github.com/vrental/gatewayauth/middleware"
)

type handlers struct {
	auth   *gatewayauth.Authenticator
	logger *zap.Logger
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	middleware.WriteFailure(w, status, message)
}

type healthBody struct {
	Status string                   `json:"status"`
	Checks gatewayauth.HealthStatus `json:"checks"`
}

// health answers 200 while the user store is reachable. A cache outage is
// reported as degraded because authentication continues without it.
func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	st := h.auth.Health(r.Context())
	switch {
	case st.Healthy():
		writeJSON(w, http.StatusOK, healthBody{Status: "ok", Checks: st})
	case st.StoreAvailable:
		writeJSON(w, http.StatusOK, healthBody{Status: "degraded", Checks: st})
	default:
		writeJSON(w, http.StatusServiceUnavailable, healthBody{Status: "unavailable", Checks: st})
	}
}

func (h *handlers) me(w http.ResponseWriter, r *http.Request) {
	res, ok := middleware.ResultFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication failed")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type messageBody struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (h *handlers) logout(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r.Header.Get("Authorization"))
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication failed")
		return
	}
	if err := h.auth.RevokeToken(r.Context(), token); err != nil {
		if errors.Is(err, gatewayauth.ErrCacheUnavailable) {
			h.logger.Warn("logout skipped, cache unavailable")
			writeError(w, http.StatusServiceUnavailable, "Logout temporarily unavailable")
			return
		}
		writeError(w, http.StatusUnauthorized, gatewayauth.Message(err))
		return
	}
	writeJSON(w, http.StatusOK, messageBody{Success: true, Message: "Logged out"})
}

type failedAttemptsBody struct {
	IP       string `json:"ip"`
	Attempts int64  `json:"attempts"`
}

func (h *handlers) failedAttempts(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("ip")
	addr, err := netip.ParseAddr(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid ip parameter")
		return
	}
	ip := addr.Unmap().String()
	n, err := h.auth.FailedAttempts(r.Context(), ip)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "Cache unavailable")
		return
	}
	writeJSON(w, http.StatusOK, failedAttemptsBody{IP: ip, Attempts: n})
}

func (h *handlers) invalidateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["user_id"], 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid user id")
		return
	}
	if err := h.auth.InvalidateUserStatus(r.Context(), id); err != nil {
		writeError(w, http.StatusServiceUnavailable, "Cache unavailable")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func notFound(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusNotFound, "Not found")
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || scheme != "Bearer" {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
