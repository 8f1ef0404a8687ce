package session

import (
	"net/http"
	"time"
)

const (
	// SessionCookie carries the full session token.
	SessionCookie = "session_token"
	// PendingCookie carries the second-factor pending token.
	PendingCookie = "pending_2fa_token"
)

// CookieConfig controls cookie attributes. Zero lifetimes fall back to 7 days for sessions
// and 10 minutes for pending tokens.
type CookieConfig struct {
	Secure        bool
	Domain        string
	SessionMaxAge time.Duration
	PendingMaxAge time.Duration
}

// Cookies writes and clears the two login cookies.
type Cookies struct {
	secure        bool
	domain        string
	sessionMaxAge time.Duration
	pendingMaxAge time.Duration
}

// NewCookies returns a Cookies for cfg.
func NewCookies(cfg CookieConfig) *Cookies {
	if cfg.SessionMaxAge <= 0 {
		cfg.SessionMaxAge = 7 * 24 * time.Hour
	}
	if cfg.PendingMaxAge <= 0 {
		cfg.PendingMaxAge = 10 * time.Minute
	}
	return &Cookies{
		secure:        cfg.Secure,
		domain:        cfg.Domain,
		sessionMaxAge: cfg.SessionMaxAge,
		pendingMaxAge: cfg.PendingMaxAge,
	}
}

// SetSession stores a session token.
func (c *Cookies) SetSession(w http.ResponseWriter, token string) {
	http.SetCookie(w, c.cookie(SessionCookie, token, int(c.sessionMaxAge/time.Second)))
}

// SetPending stores a pending second-factor token.
func (c *Cookies) SetPending(w http.ResponseWriter, token string) {
	http.SetCookie(w, c.cookie(PendingCookie, token, int(c.pendingMaxAge/time.Second)))
}

// ClearSession expires the session cookie.
func (c *Cookies) ClearSession(w http.ResponseWriter) {
	http.SetCookie(w, c.cookie(SessionCookie, "", -1))
}

// ClearPending expires the pending cookie.
func (c *Cookies) ClearPending(w http.ResponseWriter) {
	http.SetCookie(w, c.cookie(PendingCookie, "", -1))
}

// ClearAll expires both cookies.
func (c *Cookies) ClearAll(w http.ResponseWriter) {
	c.ClearSession(w)
	c.ClearPending(w)
}

// Promote replaces a pending cookie with a session cookie in one response.
func (c *Cookies) Promote(w http.ResponseWriter, sessionToken string) {
	c.SetSession(w, sessionToken)
	c.ClearPending(w)
}

func (c *Cookies) cookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   c.domain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// SessionToken returns the session cookie value, if present and non-empty.
func SessionToken(r *http.Request) (string, bool) {
	return read(r, SessionCookie)
}

// PendingToken returns the pending cookie value, if present and non-empty.
func PendingToken(r *http.Request) (string, bool) {
	return read(r, PendingCookie)
}

func read(r *http.Request, name string) (string, bool) {
	c, err := r.Cookie(name)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}
