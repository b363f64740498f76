// package auth resolves the acting investigator for each HTTP request.
// With an HMAC secret configured, requests carry a Bearer JWT whose sub and
// role claims identify the actor. Without one, the service runs in dev mode
// and trusts X-Actor-Id / X-Actor-Role headers.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dossier-hq/dossier/internal/event"
)

// Actor is the authenticated investigator attached to the request context.
type Actor struct {
	ID   string
	Role string
}

type contextKey struct{}

// FromContext returns the actor resolved by Middleware, if any.
func FromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(contextKey{}).(Actor)
	return a, ok
}

// WithActor attaches an actor to a context. Exposed for tests.
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, contextKey{}, a)
}

// Verifier validates request credentials and produces an Actor.
type Verifier struct {
	secret []byte
}

// NewVerifier builds a verifier. An empty secret enables dev header auth.
func NewVerifier(secret string) *Verifier {
	v := &Verifier{}
	if secret != "" {
		v.secret = []byte(secret)
	}
	return v
}

// Resolve extracts and validates the actor from a request.
func (v *Verifier) Resolve(r *http.Request) (Actor, error) {
	if v.secret == nil {
		actor := Actor{
			ID:   r.Header.Get("X-Actor-Id"),
			Role: r.Header.Get("X-Actor-Role"),
		}
		if actor.ID == "" {
			return Actor{}, errors.New("missing X-Actor-Id header")
		}
		if actor.Role == "" {
			actor.Role = event.RoleObserver
		}
		return actor, nil
	}

	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return Actor{}, errors.New("authentication required: bearer token")
	}
	tokenStr := strings.TrimPrefix(authHeader, "Bearer ")

	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return Actor{}, fmt.Errorf("token parse error: %w", err)
	}
	if !token.Valid {
		return Actor{}, errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Actor{}, errors.New("invalid claims")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return Actor{}, errors.New("missing sub claim")
	}
	role, _ := claims["role"].(string)
	switch role {
	case event.RoleLead, event.RoleDetective, event.RoleAnalyst, event.RoleObserver:
	default:
		role = event.RoleObserver
	}
	return Actor{ID: sub, Role: role}, nil
}

// Middleware rejects unauthenticated requests and attaches the actor to
// the request context.
func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, err := v.Resolve(r)
		if err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprintf(w, `{"error":%q}`, err.Error())
			return
		}
		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
	})
}

// Sign mints a token for an actor. Used by tests and local tooling.
func Sign(secret string, actor Actor) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  actor.ID,
		"role": actor.Role,
	})
	return token.SignedString([]byte(secret))
}
