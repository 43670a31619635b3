package services

import (
	"context"
	"testing"

	"github.com/cropscan/apiserver/internal/store"
	"github.com/cropscan/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserService_CreateForcesFarmerRole(t *testing.T) {
	repo := store.NewMemoryUserRepository()
	svc := NewUserService(repo)

	created, err := svc.Create(context.Background(), types.User{Email: "asha@farm.test", Role: "ADMIN"})
	require.NoError(t, err)
	assert.Equal(t, types.RoleFarmer, created.Role)

	stored, err := svc.GetByEmail(context.Background(), "asha@farm.test")
	require.NoError(t, err)
	assert.Equal(t, types.RoleFarmer, stored.Role)
}

func TestUserService_GetByEmailNotFound(t *testing.T) {
	svc := NewUserService(store.NewMemoryUserRepository())

	_, err := svc.GetByEmail(context.Background(), "ghost@farm.test")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
