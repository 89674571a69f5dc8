package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"realtime_go/internal/domain"
	"realtime_go/internal/security"
	"realtime_go/internal/service"
)

func TestRegister(t *testing.T) {
	tokenSvc := security.NewTokenService("secret", time.Hour)
	hasher := security.NewPasswordHasher(4) // low cost for tests

	t.Run("Success", func(t *testing.T) {
		users := new(MockUserRepo)
		svc := service.NewAuthService(users, tokenSvc, hasher)

		users.On("GetByUsername", mock.Anything, "newuser").Return(nil, domain.ErrNotFound)
		users.On("Create", mock.Anything, mock.MatchedBy(func(u *domain.User) bool {
			return u.Username == "newuser" && u.IsActive && u.HashedPassword != "Password1!"
		})).Return(nil)

		user, err := svc.Register(context.Background(), service.RegisterInput{
			Username: "newuser",
			Password: "Password1!",
		})
		require.NoError(t, err)
		assert.Equal(t, "newuser", user.Username)
	})

	t.Run("UsernameTaken", func(t *testing.T) {
		users := new(MockUserRepo)
		svc := service.NewAuthService(users, tokenSvc, hasher)

		users.On("GetByUsername", mock.Anything, "existing").
			Return(&domain.User{Username: "existing"}, nil)

		user, err := svc.Register(context.Background(), service.RegisterInput{
			Username: "existing",
			Password: "Password1!",
		})
		assert.Nil(t, user)
		assert.ErrorIs(t, err, domain.ErrConflict)
	})

	t.Run("EmailTaken", func(t *testing.T) {
		users := new(MockUserRepo)
		svc := service.NewAuthService(users, tokenSvc, hasher)

		email := "taken@example.com"
		users.On("GetByUsername", mock.Anything, "newuser").Return(nil, domain.ErrNotFound)
		users.On("GetByEmail", mock.Anything, email).
			Return(&domain.User{Username: "other"}, nil)

		_, err := svc.Register(context.Background(), service.RegisterInput{
			Username: "newuser",
			Email:    &email,
			Password: "Password1!",
		})
		assert.ErrorIs(t, err, domain.ErrConflict)
	})

	t.Run("MissingFields", func(t *testing.T) {
		users := new(MockUserRepo)
		svc := service.NewAuthService(users, tokenSvc, hasher)

		_, err := svc.Register(context.Background(), service.RegisterInput{Username: "x"})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}

func TestLogin(t *testing.T) {
	tokenSvc := security.NewTokenService("secret", time.Hour)
	hasher := security.NewPasswordHasher(4)

	hashed, err := hasher.Hash("Password1!")
	require.NoError(t, err)

	t.Run("Success", func(t *testing.T) {
		users := new(MockUserRepo)
		svc := service.NewAuthService(users, tokenSvc, hasher)

		users.On("GetByUsername", mock.Anything, "alice").
			Return(&domain.User{ID: 1, Username: "alice", HashedPassword: hashed, IsActive: true}, nil)

		resp, err := svc.Login(context.Background(), service.LoginInput{Username: "alice", Password: "Password1!"})
		require.NoError(t, err)
		assert.Equal(t, "bearer", resp.TokenType)

		claims, err := tokenSvc.Parse(resp.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, "alice", claims["sub"])
	})

	t.Run("WrongPassword", func(t *testing.T) {
		users := new(MockUserRepo)
		svc := service.NewAuthService(users, tokenSvc, hasher)

		users.On("GetByUsername", mock.Anything, "alice").
			Return(&domain.User{ID: 1, Username: "alice", HashedPassword: hashed, IsActive: true}, nil)

		_, err := svc.Login(context.Background(), service.LoginInput{Username: "alice", Password: "nope"})
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})

	t.Run("UnknownUser", func(t *testing.T) {
		users := new(MockUserRepo)
		svc := service.NewAuthService(users, tokenSvc, hasher)

		users.On("GetByUsername", mock.Anything, "ghost").Return(nil, domain.ErrNotFound)

		_, err := svc.Login(context.Background(), service.LoginInput{Username: "ghost", Password: "x"})
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})

	t.Run("InactiveUser", func(t *testing.T) {
		users := new(MockUserRepo)
		svc := service.NewAuthService(users, tokenSvc, hasher)

		users.On("GetByUsername", mock.Anything, "gone").
			Return(&domain.User{ID: 2, Username: "gone", HashedPassword: hashed, IsActive: false}, nil)

		_, err := svc.Login(context.Background(), service.LoginInput{Username: "gone", Password: "Password1!"})
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})
}
