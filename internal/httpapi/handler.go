// Package httpapi exposes the identityauth Engine over JSON/HTTP:
//
//	POST /api/auth/login     {"userName","password"}          -> {"accessToken","refreshToken",...}
//	POST /api/auth/refresh   {"accessToken","refreshToken"}   -> {"accessToken","refreshToken",...}
//	POST /api/auth/register  {"firstName","lastName","email","password"} -> {"success","errors"}
//	GET  /api/user?username= (Administrator or User)          -> user profile
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/MrEthical07/identityauth"
	"github.com/MrEthical07/identityauth/middleware"
	"github.com/MrEthical07/identityauth/permission"
)

const maxBodyBytes = 1 << 16

// PolicyReadUser guards the user lookup endpoint.
const PolicyReadUser = "user.read"

// Policies returns the frozen set of role policies the API enforces.
func Policies() *permission.Registry {
	r := permission.NewRegistry()
	_ = r.Register(PolicyReadUser, string(identityauth.RoleAdministrator), string(identityauth.RoleUser))
	r.Freeze()
	return r
}

// Service is the Engine surface the handlers use.
type Service interface {
	middleware.Authorizer
	Login(ctx context.Context, username, password string) (identityauth.LoginResult, error)
	Refresh(ctx context.Context, accessToken, refreshToken string) (identityauth.LoginResult, error)
	Register(ctx context.Context, req identityauth.RegisterRequest) (identityauth.RegisterResult, error)
	FindUser(ctx context.Context, username string) (*identityauth.UserView, error)
}

type loginRequest struct {
	UserName string `json:"userName"`
	Password string `json:"password"`
}

type refreshRequest struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type errorBody struct {
	Error string `json:"error"`
}

// New registers the API routes on a fresh mux. metrics, when non-nil, is
// mounted at GET /metrics.
func New(svc Service, metrics http.Handler, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &handler{svc: svc, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", h.login)
	mux.HandleFunc("POST /api/auth/refresh", h.refresh)
	mux.HandleFunc("POST /api/auth/register", h.register)
	policies := Policies()
	mux.Handle("GET /api/user", middleware.RequirePolicy(svc, policies.MustLookup(PolicyReadUser))(
		http.HandlerFunc(h.getUser),
	))
	if metrics != nil {
		mux.Handle("GET /metrics", metrics)
	}
	return middleware.ClientIP(mux)
}

type handler struct {
	svc    Service
	logger *slog.Logger
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var body loginRequest
	if !decode(w, r, &body) {
		return
	}

	res, err := h.svc.Login(r.Context(), body.UserName, body.Password)
	if err != nil {
		h.writeAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handler) refresh(w http.ResponseWriter, r *http.Request) {
	var body refreshRequest
	if !decode(w, r, &body) {
		return
	}

	res, err := h.svc.Refresh(r.Context(), body.AccessToken, body.RefreshToken)
	if err != nil {
		h.writeAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handler) register(w http.ResponseWriter, r *http.Request) {
	var body identityauth.RegisterRequest
	if !decode(w, r, &body) {
		return
	}

	res, err := h.svc.Register(r.Context(), body)
	if err != nil {
		h.writeAuthError(w, err)
		return
	}
	if !res.Success {
		writeJSON(w, http.StatusBadRequest, res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handler) getUser(w http.ResponseWriter, r *http.Request) {
	username := strings.TrimSpace(r.URL.Query().Get("username"))
	if username == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "username is required"})
		return
	}

	user, err := h.svc.FindUser(r.Context(), username)
	if err != nil {
		h.writeAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *handler) writeAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, identityauth.ErrInvalidCredentials):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid credentials"})
	case errors.Is(err, identityauth.ErrInvalidOrExpiredRefresh):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid or expired refresh token"})
	case errors.Is(err, identityauth.ErrLoginRateLimited):
		writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "too many attempts"})
	case errors.Is(err, identityauth.ErrUserNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "user not found"})
	case errors.Is(err, identityauth.ErrRegistrationDisabled):
		writeJSON(w, http.StatusForbidden, errorBody{Error: "registration disabled"})
	default:
		h.logger.Error("httpapi: request failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "service unavailable"})
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "malformed request body"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
