package services

import (
	"context"
	"testing"

	"membership-admin/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeederCoversEveryStatus(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t, newTestClock("2024-06-15"))

	require.NoError(t, NewSeeder(svc).Run(ctx))

	members, err := svc.ListResolved(ctx)
	require.NoError(t, err)
	require.Len(t, members, 4)

	seen := map[domain.Status]int{}
	for _, m := range members {
		seen[m.Status]++
	}
	assert.Equal(t, 2, seen[domain.StatusActive])
	assert.Equal(t, 1, seen[domain.StatusExpired])
	assert.Equal(t, 1, seen[domain.StatusInProgress])

	// second run is a no-op
	require.NoError(t, NewSeeder(svc).Run(ctx))
	count, err := store.CountMembers(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 4, count)
}
