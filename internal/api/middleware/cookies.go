package middleware

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Cookies names the credential cookies and sets their attributes. Both
// cookies are HttpOnly, SameSite=Strict and scoped to "/".
type Cookies struct {
	AccessName  string
	RefreshName string
	Secure      bool
}

func (k Cookies) SetAccess(c echo.Context, value string, expires time.Time) {
	k.set(c, k.AccessName, value, expires)
}

func (k Cookies) SetRefresh(c echo.Context, value string, expires time.Time) {
	k.set(c, k.RefreshName, value, expires)
}

func (k Cookies) ClearAccess(c echo.Context)  { k.clear(c, k.AccessName) }
func (k Cookies) ClearRefresh(c echo.Context) { k.clear(c, k.RefreshName) }

// read returns the value of the named cookie, or "" when absent.
func (k Cookies) read(c echo.Context, name string) string {
	ck, err := c.Cookie(name)
	if err != nil {
		return ""
	}
	return ck.Value
}

// ReadRefresh returns the refresh cookie value, or "" when absent.
func (k Cookies) ReadRefresh(c echo.Context) string {
	return k.read(c, k.RefreshName)
}

func (k Cookies) set(c echo.Context, name, value string, expires time.Time) {
	ck := k.base(name)
	ck.Value = value
	if !expires.IsZero() {
		ck.Expires = expires.UTC()
	}
	c.SetCookie(ck)
}

// clear expires the cookie on the client.
func (k Cookies) clear(c echo.Context, name string) {
	ck := k.base(name)
	ck.MaxAge = -1
	ck.Expires = time.Unix(0, 0)
	c.SetCookie(ck)
}

func (k Cookies) base(name string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Path:     "/",
		Secure:   k.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	}
}
