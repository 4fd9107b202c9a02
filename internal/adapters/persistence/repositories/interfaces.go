package repositories

import (
	"context"

	"membership-admin/internal/core/domain"
)

// MemberStore is the storage adapter behind the member record service.
// Backends: gorm (mysql, postgres, sqlite), MongoDB and a flat JSON file.
type MemberStore interface {
	// CreateMember inserts a member and its first interval as one unit.
	// A taken membership ID yields domain.ErrDuplicateEntry and nothing is written.
	CreateMember(ctx context.Context, member *domain.Member, first *domain.Membership) error
	// MembershipIDsForYear lists identifiers starting with prefix-year-
	MembershipIDsForYear(ctx context.Context, prefix string, year int) ([]string, error)

	GetMember(ctx context.Context, membershipID string) (*domain.Member, error)
	UpdateMember(ctx context.Context, member *domain.Member) error
	SearchMembers(ctx context.Context, filter domain.MemberFilter) ([]*domain.Member, error)
	ListMembers(ctx context.Context) ([]*domain.Member, error)
	CountMembers(ctx context.Context) (int64, error)
	UpdateStatuses(ctx context.Context, updates []domain.StatusUpdate) error

	AddMembership(ctx context.Context, interval *domain.Membership) error
	// ListMemberships returns a member's intervals, newest start first
	ListMemberships(ctx context.Context, membershipID string) ([]*domain.Membership, error)

	Ping(ctx context.Context) error
	Close() error
}
