package identity

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/golang-jwt/jwt/v5"

	"messaging-service/internal/apperrors"
	"messaging-service/internal/models"
)

// Identity is the resolved caller of a request or socket connection.
type Identity struct {
	UserID int
	Name   string
	Role   string
}

// UserResolver loads the persisted user record behind a token subject.
type UserResolver interface {
	GetUser(ctx context.Context, userID int) (models.User, error)
}

// Verifier validates bearer access tokens. The REST middleware and the
// websocket handshake share one instance so the two transports cannot
// diverge in authorization rules.
type Verifier struct {
	secret []byte
	users  UserResolver
}

// NewVerifier constructs a Verifier.
func NewVerifier(secret string, users UserResolver) *Verifier {
	return &Verifier{secret: []byte(secret), users: users}
}

// Verify checks signature and expiry, then resolves the subject to a user.
// Every failure mode collapses into ErrUnauthenticated.
func (v *Verifier) Verify(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, apperrors.ErrUnauthenticated
	}

	claims := jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return Identity{}, fmt.Errorf("%w: %v", apperrors.ErrUnauthenticated, err)
	}

	userID, err := strconv.Atoi(claims.Subject)
	if err != nil || userID <= 0 {
		return Identity{}, apperrors.ErrUnauthenticated
	}

	user, err := v.users.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return Identity{}, apperrors.ErrUnauthenticated
		}
		return Identity{}, err
	}

	return Identity{UserID: user.ID, Name: user.Name, Role: user.Role}, nil
}
