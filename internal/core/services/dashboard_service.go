package services

import (
	"context"
	"sort"
	"time"

	"membership-admin/internal/core/domain"

	"github.com/patrickmn/go-cache"
)

const (
	dashboardCacheKey = "dashboard"

	// ExpiringWindowDays is how far ahead the dashboard looks for lapsing memberships
	ExpiringWindowDays = 30

	recentLimit   = 5
	expiringLimit = 10
)

// DashboardService handles dashboard operations
type DashboardService struct {
	members *MemberService
	clock   domain.Clock
	cache   *cache.Cache
}

// NewDashboardService creates a new dashboard service. A ttl of zero disables caching.
func NewDashboardService(members *MemberService, clock domain.Clock, ttl time.Duration) *DashboardService {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	s := &DashboardService{
		members: members,
		clock:   clock,
	}
	if ttl > 0 {
		s.cache = cache.New(ttl, 2*ttl)
		members.OnChange(s.Invalidate)
	}
	return s
}

// DashboardData represents dashboard data. Counts are per member, using
// each member's current status.
type DashboardData struct {
	TotalMembers int64 `json:"total_members"`
	Active       int64 `json:"active"`
	Expired      int64 `json:"expired"`
	InProgress   int64 `json:"in_progress"`

	// Active members whose end date falls within ExpiringWindowDays
	ExpiringSoon int64 `json:"expiring_soon"`

	RecentMembers   []*MemberResponse `json:"recent_members"`
	ExpiringMembers []*MemberResponse `json:"expiring_members"`

	GeneratedAt time.Time `json:"generated_at"`
}

// GetDashboard returns dashboard data, served from cache when fresh
func (s *DashboardService) GetDashboard(ctx context.Context) (*DashboardData, error) {
	if s.cache != nil {
		if cached, ok := s.cache.Get(dashboardCacheKey); ok {
			return cached.(*DashboardData), nil
		}
	}

	members, err := s.members.ListResolved(ctx)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	horizon := domain.DateOf(now).AddDate(0, 0, ExpiringWindowDays)

	data := &DashboardData{
		TotalMembers:    int64(len(members)),
		RecentMembers:   []*MemberResponse{},
		ExpiringMembers: []*MemberResponse{},
		GeneratedAt:     now,
	}

	var expiring []*domain.Member
	for _, m := range members {
		switch m.Status {
		case domain.StatusActive:
			data.Active++
			if m.EndDate != nil && !domain.DateOf(*m.EndDate).After(horizon) {
				expiring = append(expiring, m)
			}
		case domain.StatusExpired:
			data.Expired++
		case domain.StatusInProgress:
			data.InProgress++
		}
	}
	data.ExpiringSoon = int64(len(expiring))

	// members arrive newest first
	for i := 0; i < len(members) && i < recentLimit; i++ {
		data.RecentMembers = append(data.RecentMembers, NewMemberResponse(members[i]))
	}

	sort.SliceStable(expiring, func(i, j int) bool {
		return expiring[i].EndDate.Before(*expiring[j].EndDate)
	})
	for i := 0; i < len(expiring) && i < expiringLimit; i++ {
		data.ExpiringMembers = append(data.ExpiringMembers, NewMemberResponse(expiring[i]))
	}

	if s.cache != nil {
		s.cache.SetDefault(dashboardCacheKey, data)
	}
	return data, nil
}

// Invalidate drops the cached dashboard
func (s *DashboardService) Invalidate() {
	if s.cache != nil {
		s.cache.Delete(dashboardCacheKey)
	}
}
