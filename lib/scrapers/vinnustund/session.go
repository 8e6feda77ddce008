package vinnustund

import (
	"net/http"
	"time"
)

// Cookie names issued by the attendance system. All three must come out
// of a single login exchange for the session to count as authenticated;
// the remote rejects mixed cookie generations.
const (
	cookieSession  = "JSESSIONID"     // servlet session token
	cookieIdentity = "sessionPersist" // persistent identity token
	cookieGateway  = "TS01780571"     // front-gateway token
)

// Session is the cookie triple proving an authenticated identity, plus
// the time it was obtained. Values are immutable once built: a relogin
// replaces the whole Session rather than patching fields, so concurrent
// readers never observe a mix of old and new tokens.
type Session struct {
	Identity string
	Token    string
	Gateway  string
	LoginAt  time.Time
}

func (s *Session) Cookies() []*http.Cookie {
	return []*http.Cookie{
		{Name: cookieSession, Value: s.Token},
		{Name: cookieIdentity, Value: s.Identity},
		{Name: cookieGateway, Value: s.Gateway},
	}
}

// sessionFromCookies builds a Session from the cookies captured during
// one login exchange. A partial cookie set yields ok == false and is
// treated as login failure.
func sessionFromCookies(cookies []*http.Cookie, at time.Time) (*Session, bool) {
	sess := &Session{LoginAt: at}
	for _, c := range cookies {
		switch c.Name {
		case cookieSession:
			sess.Token = c.Value
		case cookieIdentity:
			sess.Identity = c.Value
		case cookieGateway:
			sess.Gateway = c.Value
		}
	}
	if sess.Token == "" || sess.Identity == "" || sess.Gateway == "" {
		return nil, false
	}
	return sess, true
}
