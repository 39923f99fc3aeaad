package session

import (
	"net/http"
	"time"
)

const (
	// CookieName requires Secure, Path=/ and no Domain.
	CookieName = "__Host-session"

	// DevCookieName is used when secure cookies are disabled, since
	// browsers reject a __Host- cookie sent over plain http.
	DevCookieName = "copycraft_session"
)

// CookieOptions defines how session cookies are issued.
type CookieOptions struct {
	Path     string
	HttpOnly bool
	Secure   bool
	SameSite http.SameSite
	Domain   string // must be empty for __Host- cookies
}

// Name returns the cookie name matching the Secure setting.
func (o CookieOptions) Name() string {
	if o.Secure {
		return CookieName
	}
	return DevCookieName
}

// normalize applies safe defaults without breaking callers
func (o CookieOptions) normalize() CookieOptions {
	if o.Path == "" {
		o.Path = "/"
	}
	if !o.HttpOnly {
		o.HttpOnly = true
	}
	if o.SameSite == 0 {
		o.SameSite = http.SameSiteLaxMode
	}
	if o.Secure {
		o.Domain = ""
	}
	return o
}

// SetCookie issues the session cookie to the client.
func SetCookie(
	w http.ResponseWriter,
	sessionID string,
	expiresAt time.Time,
	opts CookieOptions,
) {
	opts = opts.normalize()

	http.SetCookie(w, &http.Cookie{
		Name:     opts.Name(),
		Value:    sessionID,
		Path:     opts.Path,
		Domain:   opts.Domain,
		Expires:  expiresAt,
		HttpOnly: opts.HttpOnly,
		Secure:   opts.Secure,
		SameSite: opts.SameSite,
	})
}

// ClearCookie removes the session cookie from the client.
func ClearCookie(
	w http.ResponseWriter,
	opts CookieOptions,
) {
	opts = opts.normalize()

	http.SetCookie(w, &http.Cookie{
		Name:     opts.Name(),
		Value:    "",
		Path:     opts.Path,
		Domain:   opts.Domain,
		MaxAge:   -1,
		HttpOnly: opts.HttpOnly,
		Secure:   opts.Secure,
		SameSite: opts.SameSite,
	})
}

// ReadCookie returns the session id carried by r, or "".
func ReadCookie(r *http.Request, opts CookieOptions) string {
	cookie, err := r.Cookie(opts.Name())
	if err != nil {
		return ""
	}
	return cookie.Value
}
