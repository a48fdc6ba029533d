// Package auth reads the caller's identity from a bearer token. Tokens are issued by the
// account service; this side only verifies them.
package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/troydota/api.civic.komodohype.dev/mongo"
	"github.com/troydota/api.civic.komodohype.dev/utils"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrInvalidToken   = errors.New("invalid token")
	ErrInvalidSubject = errors.New("invalid subject claim")
)

type Viewer struct {
	ID   primitive.ObjectID
	Role string
}

func (v Viewer) IsAdmin() bool {
	return v.Role == mongo.RoleAdmin
}

type claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Parse validates an HS256 token and returns the viewer in its "sub" and "role" claims.
func Parse(token string, secret []byte) (Viewer, error) {
	c := &claims{}
	t, err := jwt.ParseWithClaims(token, c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	})
	if err != nil {
		return Viewer{}, err
	}
	if !t.Valid {
		return Viewer{}, ErrInvalidToken
	}

	id, err := primitive.ObjectIDFromHex(c.Subject)
	if err != nil {
		return Viewer{}, ErrInvalidSubject
	}

	return Viewer{ID: id, Role: c.Role}, nil
}

// Issue signs a token for v. Used by tests and local tooling.
func Issue(v Viewer, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Role: v.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   v.ID.Hex(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}).SignedString(secret)
}

const viewerKey = utils.Key("viewer")

func WithViewer(ctx context.Context, v Viewer) context.Context {
	return context.WithValue(ctx, viewerKey, v)
}

func FromContext(ctx context.Context) (Viewer, bool) {
	v, ok := ctx.Value(viewerKey).(Viewer)
	return v, ok
}
