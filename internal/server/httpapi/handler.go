// Package httpapi exposes the /auth/v1 wire protocol over gorilla/mux and
// routes each operation to the local auth manager or to an external auth
// server through the proxy, depending on the per-request target.
package httpapi

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/starfall-project/authcore/internal/logging"
	"github.com/starfall-project/authcore/internal/server/authmgr"
	"github.com/starfall-project/authcore/internal/server/config"
	"github.com/starfall-project/authcore/internal/server/fop"
	"github.com/starfall-project/authcore/internal/server/proxy"
	"github.com/starfall-project/authcore/internal/server/store"
	"github.com/starfall-project/authcore/internal/userref"
)

const tokenTypeBearer = "Bearer"

// maxRequestBody caps inbound JSON bodies.
const maxRequestBody = 64 << 10

type Handler struct {
	cfg    *config.Config
	logger logging.Logger
	mgr    *authmgr.Manager
	proxy  *proxy.Client
}

func NewHandler(cfg *config.Config, logger logging.Logger, mgr *authmgr.Manager, p *proxy.Client) *Handler {
	return &Handler{cfg: cfg, logger: logger, mgr: mgr, proxy: p}
}

// Router builds the /auth/v1 route table with logging and throttle
// middleware applied.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(h.Logging)
	r.Use(h.Throttle(h.cfg.RequestRate, h.cfg.RequestBurst))

	v1 := r.PathPrefix("/auth/v1").Subrouter()
	v1.HandleFunc("/login", h.Login).Methods(http.MethodPost)
	v1.HandleFunc("/refresh", h.Refresh).Methods(http.MethodPost)
	v1.HandleFunc("/logout", h.Logout).Methods(http.MethodPost)
	v1.HandleFunc("/me", h.Me).Methods(http.MethodGet)
	v1.HandleFunc("/change-password", h.ChangePassword).Methods(http.MethodPost)
	v1.HandleFunc("/users", h.CreateUser).Methods(http.MethodPost)
	v1.HandleFunc("/introspect", h.Introspect).Methods(http.MethodPost)
	v1.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	return r
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.writeBadRequest(r.Context(), w, "invalid_body", "request body is not valid JSON")
		return false
	}
	return true
}

func setSessionCookies(w http.ResponseWriter, token string, target Target) {
	http.SetCookie(w, &http.Cookie{
		Name:     cookieAccessToken,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     cookieAuthServer,
		Value:    target.Declared(),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookies(w http.ResponseWriter) {
	for _, name := range []string{cookieAccessToken, cookieAuthServer} {
		http.SetCookie(w, &http.Cookie{Name: name, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})
	}
}

// Login authenticates against the declared target and establishes the
// session cookies. The legacy body shape {username, password} is accepted
// when id is absent.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req loginRequest
	if !h.decode(w, r, &req) {
		return
	}
	id := req.ID
	if id == "" {
		id = req.Username
	}
	if id == "" || req.Password == "" {
		h.writeBadRequest(ctx, w, "missing_credentials", "id and password are required")
		return
	}

	target, err := ParseTarget(req.Server)
	if err != nil {
		h.writeBadRequest(ctx, w, "target_invalid", "auth server target is not valid")
		return
	}

	if target.IsLocal() {
		tok, rec, err := h.mgr.Login(ctx, id, req.Password)
		if err != nil {
			h.writeError(ctx, w, err)
			return
		}
		setSessionCookies(w, tok.Value, target)
		h.writeJSON(ctx, w, http.StatusOK, loginResponse{
			Success:     true,
			AccessToken: tok.Value,
			TokenType:   tokenTypeBearer,
			Server:      userref.LocalServer,
			UserRef:     userref.NewLocal(rec.UID).String(),
		})
		return
	}

	res, err := h.proxy.Login(ctx, target.URL(), id, req.Password)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	setSessionCookies(w, res.AccessToken, target)
	tokenType := res.TokenType
	if tokenType == "" {
		tokenType = tokenTypeBearer
	}
	h.writeJSON(ctx, w, http.StatusOK, loginResponse{
		Success:     true,
		AccessToken: res.AccessToken,
		TokenType:   tokenType,
		Server:      res.Server,
		UserRef:     res.UserRef,
	})
}

// Refresh rotates the session token at its target and re-establishes the
// cookie.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sess, err := sessionFromRequest(r)
	if err != nil {
		h.writeBadRequest(ctx, w, "target_invalid", "auth server target is not valid")
		return
	}
	if sess.Token == "" {
		h.writeError(ctx, w, fop.ErrTokenInvalid)
		return
	}

	var accessToken, tokenType string
	if sess.Target.IsLocal() {
		tok, err := h.mgr.Refresh(ctx, sess.Token)
		if err != nil {
			h.writeError(ctx, w, err)
			return
		}
		accessToken, tokenType = tok.Value, tokenTypeBearer
	} else {
		res, err := h.proxy.Refresh(ctx, sess.Target.URL(), sess.Token)
		if err != nil {
			h.writeError(ctx, w, err)
			return
		}
		accessToken, tokenType = res.AccessToken, res.TokenType
		if tokenType == "" {
			tokenType = tokenTypeBearer
		}
	}

	setSessionCookies(w, accessToken, sess.Target)
	h.writeJSON(ctx, w, http.StatusOK, refreshResponse{
		Success:     true,
		AccessToken: accessToken,
		TokenType:   tokenType,
	})
}

// Logout revokes the session token and clears the cookies. Logout never
// fails for the client: an unreachable external server is logged and the
// local session state is dropped regardless.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sess, err := sessionFromRequest(r)
	if err != nil {
		h.writeBadRequest(ctx, w, "target_invalid", "auth server target is not valid")
		return
	}

	if sess.Token != "" {
		if sess.Target.IsLocal() {
			h.mgr.Logout(ctx, sess.Token)
		} else if err := h.proxy.Logout(ctx, sess.Target.URL(), sess.Token); err != nil {
			h.logger.Warn(ctx, "remote logout failed", "server", sess.Target.Name(), "error", err)
		}
	}

	clearSessionCookies(w)
	h.writeJSON(ctx, w, http.StatusOK, logoutResponse{Success: true, Message: "logged out"})
}

// Me reports the account behind the session token.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sess, err := sessionFromRequest(r)
	if err != nil {
		h.writeBadRequest(ctx, w, "target_invalid", "auth server target is not valid")
		return
	}
	if sess.Token == "" {
		h.writeError(ctx, w, fop.ErrTokenInvalid)
		return
	}

	if sess.Target.IsLocal() {
		rec, err := h.mgr.Authenticate(ctx, sess.Token)
		if err != nil {
			h.writeError(ctx, w, err)
			return
		}
		h.writeJSON(ctx, w, http.StatusOK, meResponse{Success: true, User: localUser(rec)})
		return
	}

	u, err := h.proxy.Me(ctx, sess.Target.URL(), sess.Token)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	h.writeJSON(ctx, w, http.StatusOK, meResponse{Success: true, User: userPayload{
		UID:        u.UID,
		Username:   u.Username,
		Email:      u.Email,
		IsActive:   u.IsActive,
		IsVerified: u.IsVerified,
		Server:     u.Server,
	}})
}

func localUser(rec store.UserRecord) userPayload {
	return userPayload{
		UID:        rec.UID,
		Username:   rec.Username,
		Email:      rec.Email,
		IsActive:   rec.IsActive,
		IsVerified: rec.IsVerified,
		Server:     userref.LocalServer,
	}
}

// ChangePassword re-verifies the old password and stores the new one. Only
// local accounts can change their password here; external accounts manage
// credentials on their own server.
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sess, err := sessionFromRequest(r)
	if err != nil {
		h.writeBadRequest(ctx, w, "target_invalid", "auth server target is not valid")
		return
	}
	if !sess.Target.IsLocal() {
		h.writeBadRequest(ctx, w, "target_unsupported", "password changes happen on the account's own server")
		return
	}
	if sess.Token == "" {
		h.writeError(ctx, w, fop.ErrTokenInvalid)
		return
	}

	var req changePasswordRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.NewPassword == "" {
		h.writeBadRequest(ctx, w, "missing_password", "new_password is required")
		return
	}

	if err := h.mgr.ChangePassword(ctx, sess.Token, req.OldPassword, req.NewPassword); err != nil {
		h.writeError(ctx, w, err)
		return
	}
	h.writeJSON(ctx, w, http.StatusOK, logoutResponse{Success: true, Message: "password changed"})
}

// CreateUser provisions a local account. The endpoint is gated by the
// configured admin bearer token and disabled entirely when none is set.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.cfg.AdminToken == "" || subtle.ConstantTimeCompare([]byte(bearerToken(r)), []byte(h.cfg.AdminToken)) != 1 {
		h.writeJSON(ctx, w, http.StatusForbidden, errorBody{
			Error:   "forbidden",
			Reason:  "admin_required",
			Message: "admin token required",
		})
		return
	}

	var req createUserRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Password == "" {
		h.writeBadRequest(ctx, w, "missing_password", "password is required")
		return
	}

	rec, err := h.mgr.Register(ctx, req.Username, req.Email, req.Password)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	h.writeJSON(ctx, w, http.StatusCreated, createUserResponse{Success: true, Username: rec.Username})
}

// Introspect reports whether a token is active, for service-to-service
// checks. The result is always 200; inactivity carries a reason instead of
// an error status.
func (h *Handler) Introspect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req introspectRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Token == "" {
		h.writeJSON(ctx, w, http.StatusOK, introspectResponse{Active: false, Reason: "token_missing"})
		return
	}

	target, err := ParseTarget(req.Server)
	if err != nil {
		h.writeBadRequest(ctx, w, "target_invalid", "auth server target is not valid")
		return
	}

	if target.IsLocal() {
		rec, err := h.mgr.Authenticate(ctx, req.Token)
		if err != nil {
			h.writeJSON(ctx, w, http.StatusOK, introspectResponse{
				Active: false,
				Reason: fop.Classify(err).Reason,
			})
			return
		}
		h.writeJSON(ctx, w, http.StatusOK, introspectResponse{
			Active:   true,
			UserRef:  userref.NewLocal(rec.UID).String(),
			UID:      rec.UID,
			Username: rec.Username,
			Email:    rec.Email,
		})
		return
	}

	in, err := h.proxy.Introspect(ctx, target.URL(), req.Token)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	h.writeJSON(ctx, w, http.StatusOK, introspectResponse{
		Active:   in.Active,
		UserRef:  in.UserRef,
		UID:      in.UID,
		Username: in.Username,
		Email:    in.Email,
		Reason:   in.Reason,
	})
}

// Health is the liveness probe.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(r.Context(), w, http.StatusOK, healthResponse{Status: "ok"})
}
