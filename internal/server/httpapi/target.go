package httpapi

import (
	"errors"
	"net/url"
	"strings"

	"github.com/starfall-project/authcore/internal/userref"
)

// errBadTarget reports a declared auth server that cannot be parsed into a
// usable base URL.
var errBadTarget = errors.New("invalid auth server target")

// Target is where an authentication operation is directed: the local store,
// or an external auth server identified by its base URL. The zero value is
// the local target.
type Target struct {
	base *url.URL
}

// LocalTarget directs operations at the local store.
func LocalTarget() Target { return Target{} }

// IsLocal reports whether the target is the local store.
func (t Target) IsLocal() bool { return t.base == nil }

// URL returns the external base URL; nil for the local target.
func (t Target) URL() *url.URL { return t.base }

// Name returns "local" or the external server's host name.
func (t Target) Name() string {
	if t.base == nil {
		return userref.LocalServer
	}
	return t.base.Hostname()
}

// Declared returns the string a client should send back to address this
// target again: "local" or the full base URL.
func (t Target) Declared() string {
	if t.base == nil {
		return userref.LocalServer
	}
	return t.base.String()
}

// ParseTarget interprets a client-declared auth server. Empty and "local"
// mean the local store; anything else must be an http(s) base URL or a bare
// host name, which defaults to https.
func ParseTarget(s string) (Target, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == userref.LocalServer {
		return Target{}, nil
	}
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return Target{}, errBadTarget
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return Target{}, errBadTarget
	}
	return Target{base: u}, nil
}
