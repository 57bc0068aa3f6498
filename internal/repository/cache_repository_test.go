package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/ministry-learning-api/pkg/errors"
)

func TestCacheRepositoryWithoutClient(t *testing.T) {
	repo := NewCacheRepository(nil, zap.NewNop())
	ctx := context.Background()

	var dest map[string]string
	assert.ErrorIs(t, repo.Get(ctx, "outline:c-1", &dest), appErrors.ErrCacheMiss)
	require.NoError(t, repo.Set(ctx, "outline:c-1", map[string]string{"a": "b"}, time.Minute))
	require.NoError(t, repo.DeleteByPattern(ctx, "outline:*"))

	n, err := repo.Incr(ctx, "lesson:views:l-1", time.Hour)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, repo.Close())
}
