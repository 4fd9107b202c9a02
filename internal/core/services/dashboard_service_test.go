package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDashboardCountsCurrentStatusPerMember(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock("2025-06-15")
	svc, _ := newTestService(t, clock)
	dash := NewDashboardService(svc, clock, 0)

	_, err := svc.Register(ctx, registerInput("Asha", "2025-01-01", 6)) // ends 2025-07-01
	require.NoError(t, err)
	_, err = svc.Register(ctx, registerInput("Ravi", "2025-01-01", 3)) // expired
	require.NoError(t, err)
	_, err = svc.Register(ctx, registerInput("Meera", "2025-09-01", 12)) // upcoming
	require.NoError(t, err)
	_, err = svc.Register(ctx, registerInput("Kiran", "2025-01-01", 24))
	require.NoError(t, err)

	// a renewal adds an interval but not a member
	_, err = svc.Renew(ctx, "MEM-2025-0002", &RenewInput{IntervalInput{StartDate: "2026-01-01", DurationMonths: 12}})
	require.NoError(t, err)

	data, err := dash.GetDashboard(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 4, data.TotalMembers)
	assert.EqualValues(t, 2, data.Active)
	assert.EqualValues(t, 0, data.Expired, "Ravi has an upcoming renewal")
	assert.EqualValues(t, 2, data.InProgress)
	assert.EqualValues(t, 1, data.ExpiringSoon)
	require.Len(t, data.ExpiringMembers, 1)
	assert.Equal(t, "Asha", data.ExpiringMembers[0].FirstName)
	assert.Len(t, data.RecentMembers, 4)
}

func TestDashboardCacheInvalidatedOnWrite(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock("2025-06-15")
	svc, _ := newTestService(t, clock)
	dash := NewDashboardService(svc, clock, time.Hour)

	_, err := svc.Register(ctx, registerInput("Asha", "2025-01-01", 12))
	require.NoError(t, err)

	first, err := dash.GetDashboard(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, first.TotalMembers)

	again, err := dash.GetDashboard(ctx)
	require.NoError(t, err)
	assert.Same(t, first, again, "served from cache")

	_, err = svc.Register(ctx, registerInput("Ravi", "2025-01-01", 12))
	require.NoError(t, err)

	fresh, err := dash.GetDashboard(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, fresh.TotalMembers)
}

func TestDashboardEmpty(t *testing.T) {
	clock := newTestClock("2025-06-15")
	svc, _ := newTestService(t, clock)

	data, err := NewDashboardService(svc, clock, 0).GetDashboard(context.Background())
	require.NoError(t, err)
	assert.Zero(t, data.TotalMembers)
	assert.NotNil(t, data.RecentMembers)
	assert.NotNil(t, data.ExpiringMembers)
}
