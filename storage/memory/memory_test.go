package memory

import (
	"context"
	"testing"
	"time"

	"github.com/afromart/gate"
	"github.com/stretchr/testify/require"
)

func TestCreateAndLookup(t *testing.T) {
	ctx := context.Background()
	s := New()

	id, err := s.CreateUser(ctx, gate.NewUser{Username: "alice001", Email: "alice@gmail.com", PasswordHash: "h"})
	require.NoError(t, err)
	require.Equal(t, int64(1), id)

	u, err := s.GetUserByUsername(ctx, "alice001")
	require.NoError(t, err)
	require.Equal(t, id, u.ID)
	require.False(t, u.Active)
	require.False(t, u.DateJoined.IsZero())

	_, err = s.CreateUser(ctx, gate.NewUser{Username: "alice001", Email: "other@gmail.com"})
	require.ErrorIs(t, err, gate.ErrUsernameTaken)

	ok, err := s.EmailExists(ctx, "alice@gmail.com")
	require.NoError(t, err)
	require.True(t, ok)

	_, err = s.GetUserByID(ctx, 99)
	require.ErrorIs(t, err, gate.ErrUserNotFound)
}

func TestFindActiveUserByEmail(t *testing.T) {
	ctx := context.Background()
	s := New()

	pending, err := s.CreateUser(ctx, gate.NewUser{Username: "alice001", Email: "shared@gmail.com"})
	require.NoError(t, err)
	_, err = s.FindActiveUserByEmail(ctx, "shared@gmail.com")
	require.ErrorIs(t, err, gate.ErrUserNotFound)

	second, err := s.CreateUser(ctx, gate.NewUser{Username: "bobby001", Email: "shared@gmail.com", Active: true})
	require.NoError(t, err)
	require.NoError(t, s.Activate(ctx, pending))

	u, err := s.FindActiveUserByEmail(ctx, "shared@gmail.com")
	require.NoError(t, err)
	require.Equal(t, pending, u.ID)
	require.NotEqual(t, second, u.ID)
}

func TestUpdates(t *testing.T) {
	ctx := context.Background()
	s := New()
	id, err := s.CreateUser(ctx, gate.NewUser{Username: "alice001", Email: "alice@gmail.com", PasswordHash: "old"})
	require.NoError(t, err)

	require.NoError(t, s.SetPasswordHash(ctx, id, "new"))
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, s.TouchLastLogin(ctx, id, at))

	u, err := s.GetUserByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "new", u.PasswordHash)
	require.NotNil(t, u.LastLogin)
	require.True(t, u.LastLogin.Equal(at))

	require.ErrorIs(t, s.Activate(ctx, 42), gate.ErrUserNotFound)
}
