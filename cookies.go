package gorbac

import (
	"net/http"
	"time"
)

// AccessCookieName returns the configured access token cookie name.
func (e *Engine) AccessCookieName() string { return e.cfg.Cookie.AccessName }

// TokenCookies renders an AuthResult as the cookie pair browser
// transports conventionally set. Both cookies are HttpOnly; Secure and
// SameSite follow the cookie configuration.
func (e *Engine) TokenCookies(res *AuthResult) []*http.Cookie {
	expires := e.now().Add(e.cfg.Cookie.TTL)
	base := http.Cookie{
		Path:     e.cfg.Cookie.Path,
		Domain:   e.cfg.Cookie.Domain,
		Expires:  expires,
		HttpOnly: true,
		Secure:   e.cfg.Cookie.Secure,
		SameSite: e.cfg.Cookie.SameSite,
	}
	access, refresh := base, base
	access.Name = e.cfg.Cookie.AccessName
	access.Value = res.Tokens.AccessToken
	refresh.Name = e.cfg.Cookie.RefreshName
	refresh.Value = res.Tokens.RefreshToken
	return []*http.Cookie{&access, &refresh}
}

// ClearTokenCookies returns overwriting cookies that expire almost
// immediately, for logout responses.
func (e *Engine) ClearTokenCookies() []*http.Cookie {
	expires := e.now().Add(5 * time.Second)
	out := make([]*http.Cookie, 0, 2)
	for _, name := range []string{e.cfg.Cookie.AccessName, e.cfg.Cookie.RefreshName} {
		out = append(out, &http.Cookie{
			Name:     name,
			Value:    "loggedout",
			Path:     e.cfg.Cookie.Path,
			Domain:   e.cfg.Cookie.Domain,
			Expires:  expires,
			HttpOnly: true,
			Secure:   e.cfg.Cookie.Secure,
			SameSite: e.cfg.Cookie.SameSite,
		})
	}
	return out
}
