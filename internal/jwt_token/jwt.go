package jwttoken

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the subset of the session token payload the dashboard reads.
type Claims struct {
	Subject   string
	UserID    string
	ExpiresAt *time.Time
	Raw       jwt.MapClaims
}

// Validator checks session tokens locally. It never verifies the signature:
// the remote API is the authority, this only avoids sending tokens that are
// already known to be dead.
type Validator struct {
	now    func() time.Time
	parser *jwt.Parser
}

// Option configures a Validator.
type Option func(*Validator)

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(v *Validator) {
		if now != nil {
			v.now = now
		}
	}
}

func NewValidator(opts ...Option) *Validator {
	v := &Validator{
		now:    time.Now,
		parser: jwt.NewParser(jwt.WithPaddingAllowed()),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

var defaultValidator = NewValidator()

// IsValid reports whether raw is a well-formed token that has not expired,
// using the wall clock.
func IsValid(raw string) bool {
	return defaultValidator.IsValid(raw)
}

// Sanitize strips stray double quotes wrapping a stored token.
func Sanitize(raw string) string {
	return strings.Trim(raw, `"`)
}

// IsValid reports whether raw has exactly three segments, a decodable
// payload, and (when the payload carries a numeric exp) an expiry strictly
// after the current second. A payload without a numeric exp never expires.
func (v *Validator) IsValid(raw string) bool {
	claims, ok := v.Parse(raw)
	if !ok {
		return false
	}
	exp, ok := claims.Raw["exp"].(float64)
	if !ok {
		return true
	}
	return exp > float64(v.now().Unix())
}

// Parse decodes the payload segment of raw without verifying the signature.
func (v *Validator) Parse(raw string) (Claims, bool) {
	token := Sanitize(raw)
	if token == "" {
		return Claims{}, false
	}
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return Claims{}, false
	}

	payload, err := v.parser.DecodeSegment(parts[1])
	if err != nil {
		return Claims{}, false
	}
	var mc jwt.MapClaims
	if err := json.Unmarshal(payload, &mc); err != nil || mc == nil {
		return Claims{}, false
	}

	claims := Claims{Raw: mc}
	if sub, err := mc.GetSubject(); err == nil {
		claims.Subject = sub
	}
	claims.UserID = userIDFrom(mc)
	if _, numeric := mc["exp"].(float64); numeric {
		if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
			t := exp.Time
			claims.ExpiresAt = &t
		}
	}
	return claims, true
}

// userIDFrom looks for the user id in the places the upstream has used: a
// Hasura claims namespace first, then the standard subject.
func userIDFrom(mc jwt.MapClaims) string {
	if ns, ok := mc["https://hasura.io/jwt/claims"].(map[string]any); ok {
		if id, ok := ns["x-hasura-user-id"].(string); ok && id != "" {
			return id
		}
	}
	if sub, ok := mc["sub"].(string); ok {
		return sub
	}
	return ""
}
