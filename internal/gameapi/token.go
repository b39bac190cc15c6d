package gameapi

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenSlack is how much validity a stored bearer token must still have to be
// reused without logging in again.
const tokenSlack = 5 * time.Minute

// TokenUsable reports whether a stored bearer token is still worth reusing.
// The signature is not checked — the server does that — only the expiry claim.
func TokenUsable(token string, now time.Time) bool {
	if token == "" {
		return false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Time.After(now.Add(tokenSlack))
}

// UserIDFromToken pulls the subject (the account's user id) out of a bearer
// token, for records that predate the user_id column.
func UserIDFromToken(token string) string {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return ""
	}
	sub, err := claims.GetSubject()
	if err != nil {
		return ""
	}
	return sub
}
