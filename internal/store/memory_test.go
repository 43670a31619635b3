package store

import (
	"context"
	"testing"
	"time"

	"github.com/cropscan/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryUserRepository_DuplicateEmail(t *testing.T) {
	repo := NewMemoryUserRepository()
	ctx := context.Background()

	created, err := repo.Create(ctx, types.User{Email: "asha@farm.test", Role: types.RoleFarmer})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)

	_, err = repo.Create(ctx, types.User{Email: "asha@farm.test", Role: types.RoleFarmer})
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.Equal(t, 1, repo.CountByEmail("asha@farm.test"))

	found, err := repo.GetByEmail(ctx, "asha@farm.test")
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)

	_, err = repo.GetByEmail(ctx, "other@farm.test")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryScanRepository_ListRecentOrderAndLimit(t *testing.T) {
	repo := NewMemoryScanRepository()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 60; i++ {
		_, err := repo.Create(ctx, types.ScanHistory{
			Disease:    "Blight",
			Confidence: "High",
			Severity:   "High",
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	scans, err := repo.ListRecent(ctx, types.ScanHistoryLimit)
	require.NoError(t, err)
	require.Len(t, scans, types.ScanHistoryLimit)
	assert.Equal(t, base.Add(59*time.Minute), scans[0].CreatedAt)
	for i := 1; i < len(scans); i++ {
		assert.True(t, scans[i-1].CreatedAt.After(scans[i].CreatedAt), "index %d not descending", i)
	}
}

func TestMemoryScanRepository_CountDeleteAll(t *testing.T) {
	repo := NewMemoryScanRepository()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := repo.Create(ctx, types.ScanHistory{CreatedAt: time.Now()})
		require.NoError(t, err)
	}

	total, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)

	require.NoError(t, repo.DeleteAll(ctx))
	scans, err := repo.ListRecent(ctx, types.ScanHistoryLimit)
	require.NoError(t, err)
	assert.Empty(t, scans)
}
