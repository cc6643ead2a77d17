package identity

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messaging-service/internal/apperrors"
	"messaging-service/internal/mocks"
	"messaging-service/internal/models"
)

const testSecret = "unit-test-secret"

func signToken(t *testing.T, secret string, subject string, expiresIn time.Duration) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestVerifyValidToken(t *testing.T) {
	users := new(mocks.DirectoryRepositoryMock)
	users.On("GetUser", mock.Anything, 7).
		Return(models.User{ID: 7, Name: "alice", Role: "applicant"}, nil).Once()
	verifier := NewVerifier(testSecret, users)

	ident, err := verifier.Verify(context.Background(), signToken(t, testSecret, "7", time.Hour))

	require.NoError(t, err)
	assert.Equal(t, 7, ident.UserID)
	assert.Equal(t, "alice", ident.Name)
	assert.Equal(t, "applicant", ident.Role)
	users.AssertExpectations(t)
}

func TestVerifyExpiredToken(t *testing.T) {
	verifier := NewVerifier(testSecret, new(mocks.DirectoryRepositoryMock))

	_, err := verifier.Verify(context.Background(), signToken(t, testSecret, "7", -time.Minute))

	require.ErrorIs(t, err, apperrors.ErrUnauthenticated)
}

func TestVerifyWrongSecret(t *testing.T) {
	verifier := NewVerifier(testSecret, new(mocks.DirectoryRepositoryMock))

	_, err := verifier.Verify(context.Background(), signToken(t, "other-secret", "7", time.Hour))

	require.ErrorIs(t, err, apperrors.ErrUnauthenticated)
}

func TestVerifyEmptyToken(t *testing.T) {
	verifier := NewVerifier(testSecret, new(mocks.DirectoryRepositoryMock))

	_, err := verifier.Verify(context.Background(), "")

	require.ErrorIs(t, err, apperrors.ErrUnauthenticated)
}

func TestVerifyNonNumericSubject(t *testing.T) {
	verifier := NewVerifier(testSecret, new(mocks.DirectoryRepositoryMock))

	_, err := verifier.Verify(context.Background(), signToken(t, testSecret, "not-a-number", time.Hour))

	require.ErrorIs(t, err, apperrors.ErrUnauthenticated)
}

func TestVerifyUnknownUser(t *testing.T) {
	users := new(mocks.DirectoryRepositoryMock)
	users.On("GetUser", mock.Anything, 12).
		Return(models.User{}, apperrors.ErrNotFound).Once()
	verifier := NewVerifier(testSecret, users)

	_, err := verifier.Verify(context.Background(), signToken(t, testSecret, "12", time.Hour))

	require.ErrorIs(t, err, apperrors.ErrUnauthenticated)
	users.AssertExpectations(t)
}
