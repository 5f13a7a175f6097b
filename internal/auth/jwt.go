package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/smallbiznis/pioneer/internal/config"
)

// Verifier validates HS256 bearer tokens issued by the host platform.
type Verifier struct {
	ja *jwtauth.JWTAuth
}

var ErrMissingSecret = errors.New("auth: AUTH_JWT_SECRET is required")

func NewVerifier(cfg config.Config) (*Verifier, error) {
	secret := strings.TrimSpace(cfg.Auth.JWTSecret)
	if secret == "" {
		if cfg.IsProduction() {
			return nil, ErrMissingSecret
		}
		// Development: tokens cannot verify, every protected route answers 401.
		secret = "pioneer-dev-" + time.Now().UTC().Format(time.RFC3339Nano)
	}
	skew := cfg.Auth.AcceptedSkew
	if skew <= 0 {
		skew = 30 * time.Second
	}
	return &Verifier{
		ja: jwtauth.New("HS256", []byte(secret), nil, jwt.WithAcceptableSkew(skew)),
	}, nil
}

// Verify extracts and validates the bearer token on r.
func (v *Verifier) Verify(r *http.Request) (Caller, error) {
	if jwtauth.TokenFromHeader(r) == "" {
		return Caller{}, ErrUnauthenticated
	}
	token, err := jwtauth.VerifyRequest(v.ja, r, jwtauth.TokenFromHeader)
	if err != nil || token == nil {
		return Caller{}, ErrInvalidToken
	}
	return callerFromToken(token)
}

// Issue signs claims; used by operator tooling and tests.
func (v *Verifier) Issue(caller Caller, ttl time.Duration) (string, error) {
	claims := map[string]interface{}{
		jwt.SubjectKey: caller.Subject,
		"role":         caller.Role,
	}
	if caller.Name != "" {
		claims["name"] = caller.Name
	}
	if caller.Email != "" {
		claims["email"] = caller.Email
	}
	if ttl > 0 {
		jwtauth.SetExpiryIn(claims, ttl)
	}
	_, signed, err := v.ja.Encode(claims)
	return signed, err
}

func callerFromToken(token jwt.Token) (Caller, error) {
	subject := strings.TrimSpace(token.Subject())
	if subject == "" {
		return Caller{}, ErrInvalidToken
	}
	caller := Caller{Subject: subject, Role: RoleReferrer}
	private := token.PrivateClaims()
	if role, ok := private["role"].(string); ok && strings.TrimSpace(role) != "" {
		caller.Role = strings.ToLower(strings.TrimSpace(role))
	}
	if name, ok := private["name"].(string); ok {
		caller.Name = strings.TrimSpace(name)
	}
	if email, ok := private["email"].(string); ok {
		caller.Email = strings.TrimSpace(email)
	}
	return caller, nil
}
