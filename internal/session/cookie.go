package session

import (
	"net/http"
	"time"
)

const CookieName = "taskdash_session"

// Cookie builds the session cookie expiring at expires.
func Cookie(token string, expires time.Time, secure bool) http.Cookie {
	return http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		MaxAge:   int(time.Until(expires).Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// ExpiredCookie builds a cookie that removes the session from the browser.
func ExpiredCookie(secure bool) http.Cookie {
	return http.Cookie{
		Name:     CookieName,
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func SetCookie(w http.ResponseWriter, token string, expires time.Time, secure bool) {
	c := Cookie(token, expires, secure)
	http.SetCookie(w, &c)
}

func ClearCookie(w http.ResponseWriter, secure bool) {
	c := ExpiredCookie(secure)
	http.SetCookie(w, &c)
}

// FromRequest returns the session cookie value or "".
func FromRequest(r *http.Request) string {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return ""
	}
	return c.Value
}
