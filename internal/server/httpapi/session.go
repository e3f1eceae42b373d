package httpapi

import (
	"net/http"
	"strings"
)

// Cookie names set on login and read back on subsequent requests.
const (
	cookieAccessToken = "access_token"
	cookieAuthServer  = "auth_server"
)

// headerAuthServer lets non-browser clients declare the target without
// cookies.
const headerAuthServer = "X-Auth-Server"

// Session is the per-request authentication context: where the token should
// be validated and the token itself. It is rebuilt from the request every
// time and never cached across requests.
type Session struct {
	Target Target
	Token  string
}

// sessionFromRequest derives the session from the Authorization header or
// the access_token cookie, and the declared target from the X-Auth-Server
// header or the auth_server cookie. A malformed target declaration is an
// error; a missing token is not, the handler decides whether one is needed.
func sessionFromRequest(r *http.Request) (Session, error) {
	declared := r.Header.Get(headerAuthServer)
	if declared == "" {
		if c, err := r.Cookie(cookieAuthServer); err == nil {
			declared = c.Value
		}
	}
	target, err := ParseTarget(declared)
	if err != nil {
		return Session{}, err
	}

	return Session{Target: target, Token: bearerToken(r)}, nil
}

// bearerToken extracts the token from "Authorization: Bearer <t>" or falls
// back to the access_token cookie.
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	if c, err := r.Cookie(cookieAccessToken); err == nil {
		return c.Value
	}
	return ""
}
