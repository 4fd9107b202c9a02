package services

import (
	"context"

	"membership-admin/internal/core/domain"
	"membership-admin/internal/pkg/jwt"
	"membership-admin/internal/pkg/pagination"
)

// MemberRecords is the member service as seen by the HTTP layer
type MemberRecords interface {
	Register(ctx context.Context, input *RegisterMemberInput) (*MemberDetail, error)
	Get(ctx context.Context, membershipID string) (*MemberDetail, error)
	Memberships(ctx context.Context, membershipID string) ([]*MembershipResponse, error)
	Search(ctx context.Context, input *SearchInput) ([]*MemberResponse, *pagination.Meta, error)
	Update(ctx context.Context, membershipID string, input *UpdateMemberInput) (*MemberDetail, error)
	Renew(ctx context.Context, membershipID string, input *RenewInput) (*MemberDetail, error)
	RefreshStatuses(ctx context.Context) (int, error)
	ListResolved(ctx context.Context) ([]*domain.Member, error)
}

// Authenticator is the auth service as seen by the HTTP layer
type Authenticator interface {
	Login(ctx context.Context, input *LoginInput) (*AuthResponse, error)
	Logout(ctx context.Context, accessToken string) error
	ValidateAccessToken(accessToken string) (*jwt.Claims, error)
	Me(claims *jwt.Claims) *AdminResponse
}

var (
	_ MemberRecords = (*MemberService)(nil)
	_ Authenticator = (*AuthService)(nil)
)
