package testutil

import "net/http"

// WithSessionCookie attaches the browser session cookie the session
// middleware reads, so a test request reuses a known session id.
func WithSessionCookie(req *http.Request, name, sessionID string) *http.Request {
	req.AddCookie(&http.Cookie{Name: name, Value: sessionID})
	return req
}
