package persist

import (
	"net/http"
	"time"
)

// CookieMirror writes values as cookies on an outgoing response. It is a
// write-time mirror: Get reads the incoming request's cookies when one is
// attached, but resolution never depends on it.
type CookieMirror struct {
	w      http.ResponseWriter
	r      *http.Request
	secure bool
}

// NewCookieMirror binds a mirror to one request/response pair.
func NewCookieMirror(w http.ResponseWriter, r *http.Request, secure bool) *CookieMirror {
	return &CookieMirror{w: w, r: r, secure: secure}
}

func (c *CookieMirror) Get(key string) (string, bool, error) {
	if c.r == nil {
		return "", false, nil
	}
	ck, err := c.r.Cookie(key)
	if err != nil {
		return "", false, nil
	}
	return ck.Value, true, nil
}

// Set writes a cookie with Max-Age equal to ttl, or a session cookie when
// ttl is zero.
func (c *CookieMirror) Set(key, value string, ttl time.Duration) error {
	ck := &http.Cookie{
		Name:     key,
		Value:    value,
		Path:     "/",
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	}
	if ttl > 0 {
		ck.MaxAge = int(ttl / time.Second)
	}
	http.SetCookie(c.w, ck)
	return nil
}

func (c *CookieMirror) Remove(key string) error {
	http.SetCookie(c.w, &http.Cookie{
		Name:   key,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
	return nil
}
