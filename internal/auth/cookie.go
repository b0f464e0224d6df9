package auth

import (
	"net/http"
)

// CookieName is the http-only cookie carrying the session credential on both
// the request and the connection channel.
const CookieName = "jwt"

// TokenFromRequest extracts the session credential from the request cookie.
// Returns "" when absent.
func TokenFromRequest(r *http.Request) string {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

// SetSessionCookie writes the session credential. Cross-site deployments need
// SameSite=None with Secure; same-site ones use Lax without Secure.
func SetSessionCookie(w http.ResponseWriter, token string, crossSite bool) {
	http.SetCookie(w, sessionCookie(token, int(SessionTTL.Seconds()), crossSite))
}

// ClearSessionCookie overwrites the credential with an empty, immediately expiring cookie.
func ClearSessionCookie(w http.ResponseWriter, crossSite bool) {
	http.SetCookie(w, sessionCookie("", -1, crossSite))
}

func sessionCookie(value string, maxAge int, crossSite bool) *http.Cookie {
	c := &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   false,
	}
	if crossSite {
		c.SameSite = http.SameSiteNoneMode
		c.Secure = true
	}
	return c
}
