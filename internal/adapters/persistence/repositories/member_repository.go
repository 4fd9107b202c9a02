package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"membership-admin/internal/adapters/persistence/models"
	"membership-admin/internal/core/domain"

	"gorm.io/gorm"
)

// gormMemberStore implements MemberStore on top of gorm.
// The unique index on members.membership_id is what rejects a racing allocation,
// so the *gorm.DB must be opened with TranslateError enabled.
type gormMemberStore struct {
	db *gorm.DB
}

// NewGormMemberStore creates a new gorm-backed member store
func NewGormMemberStore(db *gorm.DB) MemberStore {
	return &gormMemberStore{db: db}
}

// CreateMember inserts member and first interval in one transaction
func (r *gormMemberStore) CreateMember(ctx context.Context, member *domain.Member, first *domain.Membership) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := models.FromDomainMember(member)
		if err := tx.Create(row).Error; err != nil {
			return err
		}
		if first != nil {
			if err := tx.Create(models.FromDomainMembership(first)).Error; err != nil {
				return err
			}
		}
		member.CreatedAt = row.CreatedAt
		member.UpdatedAt = row.UpdatedAt
		return nil
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateEntry, member.MembershipID)
	}
	return err
}

// MembershipIDsForYear lists identifiers issued for year
func (r *gormMemberStore) MembershipIDsForYear(ctx context.Context, prefix string, year int) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&models.Member{}).
		Where("membership_id LIKE ? ESCAPE '!'", escapeLike(fmt.Sprintf("%s-%d-", prefix, year))+"%").
		Pluck("membership_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// GetMember gets a member by membership ID
func (r *gormMemberStore) GetMember(ctx context.Context, membershipID string) (*domain.Member, error) {
	var member models.Member
	err := r.db.WithContext(ctx).
		Where("membership_id = ?", membershipID).
		First(&member).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrMemberNotFound
		}
		return nil, err
	}
	return member.ToDomain(), nil
}

// UpdateMember overwrites every mutable column of a member
func (r *gormMemberStore) UpdateMember(ctx context.Context, member *domain.Member) error {
	row := models.FromDomainMember(member)
	row.UpdatedAt = time.Now()
	result := r.db.WithContext(ctx).
		Model(&models.Member{}).
		Where("membership_id = ?", member.MembershipID).
		Select("*").
		Omit("id", "membership_id", "created_at").
		Updates(row)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrMemberNotFound
	}
	member.UpdatedAt = row.UpdatedAt
	return nil
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// escapeLike makes s match literally inside a LIKE pattern using ESCAPE '!'
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// containsPattern is a lower-cased substring pattern for s
func containsPattern(s string) string {
	return "%" + escapeLike(strings.ToLower(s)) + "%"
}

// SearchMembers matches every non-empty filter field as a case-insensitive substring
func (r *gormMemberStore) SearchMembers(ctx context.Context, filter domain.MemberFilter) ([]*domain.Member, error) {
	query := r.db.WithContext(ctx).Model(&models.Member{})

	if kw := strings.TrimSpace(filter.Keyword); kw != "" {
		like := containsPattern(kw)
		query = query.Where("(LOWER(first_name) LIKE ? ESCAPE '!' OR LOWER(last_name) LIKE ? ESCAPE '!' OR LOWER(primary_mobile) LIKE ? ESCAPE '!')", like, like, like)
	}
	for column, value := range map[string]string{
		"membership_id":     filter.MembershipID,
		"organization_name": filter.OrganizationName,
		"primary_mobile":    filter.PrimaryMobile,
		"email":             filter.Email,
	} {
		if value = strings.TrimSpace(value); value != "" {
			query = query.Where("LOWER("+column+") LIKE ? ESCAPE '!'", containsPattern(value))
		}
	}

	var rows []*models.Member
	if err := query.Order("created_at DESC").Order("membership_id DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return toDomainMembers(rows), nil
}

// ListMembers lists all members, newest first
func (r *gormMemberStore) ListMembers(ctx context.Context) ([]*domain.Member, error) {
	var rows []*models.Member
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Order("membership_id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toDomainMembers(rows), nil
}

// CountMembers counts all members
func (r *gormMemberStore) CountMembers(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Member{}).Count(&count).Error
	return count, err
}

// UpdateStatuses writes recomputed status caches in one transaction
func (r *gormMemberStore) UpdateStatuses(ctx context.Context, updates []domain.StatusUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, u := range updates {
			err := tx.Model(&models.Member{}).
				Where("membership_id = ?", u.MembershipID).
				Updates(map[string]interface{}{
					"status":     string(u.Status),
					"start_date": domain.DateOf(u.StartDate),
					"end_date":   dateOrNil(u.EndDate),
				}).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// AddMembership appends an interval to an existing member
func (r *gormMemberStore) AddMembership(ctx context.Context, interval *domain.Membership) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Member{}).Where("membership_id = ?", interval.MembershipID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return domain.ErrMemberNotFound
		}
		row := models.FromDomainMembership(interval)
		if err := tx.Create(row).Error; err != nil {
			return err
		}
		interval.CreatedAt = row.CreatedAt
		return nil
	})
}

// ListMemberships lists a member's intervals, newest start first
func (r *gormMemberStore) ListMemberships(ctx context.Context, membershipID string) ([]*domain.Membership, error) {
	var rows []*models.Membership
	err := r.db.WithContext(ctx).
		Where("membership_id = ?", membershipID).
		Order("start_date DESC").
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	intervals := make([]*domain.Membership, len(rows))
	for i, row := range rows {
		intervals[i] = row.ToDomain()
	}
	return intervals, nil
}

// Ping checks database connectivity
func (r *gormMemberStore) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the underlying connection pool
func (r *gormMemberStore) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func toDomainMembers(rows []*models.Member) []*domain.Member {
	members := make([]*domain.Member, len(rows))
	for i, row := range rows {
		members[i] = row.ToDomain()
	}
	return members
}

func dateOrNil(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return domain.DateOf(*t)
}
