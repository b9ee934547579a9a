package auth_test

import (
	"context"
	"testing"
	"time"

	"go-pos-ledger/internal/apperr"
	"go-pos-ledger/internal/auth"
	"go-pos-ledger/internal/database/dbtest"
	"go-pos-ledger/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateInitialAdmin_OnlyOnce(t *testing.T) {
	d := auth.NewDirectory(dbtest.New(t))
	ctx := context.Background()

	admin, err := d.CreateInitialAdmin(ctx, "root", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, admin.Role)
	assert.Empty(t, admin.Store)
	assert.NotEqual(t, "s3cret", admin.PasswordHash)

	_, err = d.CreateInitialAdmin(ctx, "other", "s3cret")
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestRegister(t *testing.T) {
	d := auth.NewDirectory(dbtest.New(t))
	ctx := context.Background()

	m, err := d.Register(ctx, "ann", "pw", models.RoleManager, models.Store1)
	require.NoError(t, err)
	assert.Equal(t, models.Store1, m.Store)

	// same name in another store is a different user
	_, err = d.Register(ctx, "ann", "pw", models.RoleManager, models.Store2)
	require.NoError(t, err)

	_, err = d.Register(ctx, "ann", "pw", models.RoleManager, models.Store1)
	assert.ErrorIs(t, err, apperr.ErrConflict)

	_, err = d.Register(ctx, "bob", "pw", models.RoleManager, "store9")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = d.Register(ctx, "bob", "pw", "owner", models.Store1)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = d.Register(ctx, " ", "pw", models.RoleManager, models.Store1)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	admin, err := d.Register(ctx, "boss", "pw", models.RoleAdmin, models.Store2)
	require.NoError(t, err)
	assert.Empty(t, admin.Store, "admins are not store scoped")
}

func TestAuthenticate(t *testing.T) {
	d := auth.NewDirectory(dbtest.New(t))
	ctx := context.Background()

	_, err := d.Register(ctx, "ann", "correct horse", models.RoleManager, models.Store1)
	require.NoError(t, err)

	u, err := d.Authenticate(ctx, "ann", "correct horse", models.Store1)
	require.NoError(t, err)
	require.NotNil(t, u.LastLogin)
	assert.WithinDuration(t, time.Now(), *u.LastLogin, time.Minute)

	_, err = d.Authenticate(ctx, "ann", "wrong", models.Store1)
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	_, err = d.Authenticate(ctx, "ann", "correct horse", models.Store2)
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	_, err = d.Authenticate(ctx, "nobody", "x", models.Store1)
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestResolveActor(t *testing.T) {
	d := auth.NewDirectory(dbtest.New(t))
	ctx := context.Background()

	m, err := d.Register(ctx, "ann", "pw", models.RoleManager, models.Store2)
	require.NoError(t, err)

	actor, err := d.ResolveActor(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "ann", actor.Username)
	assert.True(t, actor.CanAccess(models.Store2))
	assert.False(t, actor.CanAccess(models.Store1))

	_, err = d.ResolveActor(ctx, "ghost")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	admin := auth.Actor{Role: models.RoleAdmin}
	assert.True(t, admin.CanAccess(models.Store1))
	assert.True(t, admin.CanAccess(models.Store2))
}

func TestDelete(t *testing.T) {
	d := auth.NewDirectory(dbtest.New(t))
	ctx := context.Background()

	a, err := d.Register(ctx, "ann", "pw", models.RoleManager, models.Store1)
	require.NoError(t, err)

	require.NoError(t, d.Delete(ctx, "ann", models.Store1))
	assert.ErrorIs(t, d.Delete(ctx, "ann", models.Store1), apperr.ErrNotFound)

	_, err = d.ResolveActor(ctx, a.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
