package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"membership-admin/internal/core/domain"
)

// jsonFileData is the on-disk layout of the JSON file store
type jsonFileData struct {
	Members     []*domain.Member     `json:"members"`
	Memberships []*domain.Membership `json:"memberships"`
}

// jsonFileStore keeps every record in one JSON file. Writes go through a
// temp file and rename, so a crash never leaves a half-written file.
// The mutex only serializes writers inside this process; run a single
// instance against a given file.
type jsonFileStore struct {
	path string
	mu   sync.RWMutex
	data jsonFileData
}

// NewJSONFileStore opens (or creates) the JSON file at path
func NewJSONFileStore(path string) (MemberStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	s := &jsonFileStore{path: path}
	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := s.flush(); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, fmt.Errorf("failed to read store file: %w", err)
	case len(strings.TrimSpace(string(raw))) > 0:
		if err := json.Unmarshal(raw, &s.data); err != nil {
			return nil, fmt.Errorf("failed to decode store file: %w", err)
		}
	}
	return s, nil
}

func (s *jsonFileStore) flush() error {
	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

func (s *jsonFileStore) indexOf(membershipID string) int {
	for i, m := range s.data.Members {
		if m.MembershipID == membershipID {
			return i
		}
	}
	return -1
}

func copyMember(m *domain.Member) *domain.Member {
	c := *m
	return &c
}

// CreateMember inserts member and first interval, rolling back in memory if the write fails
func (s *jsonFileStore) CreateMember(ctx context.Context, member *domain.Member, first *domain.Membership) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexOf(member.MembershipID) >= 0 {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateEntry, member.MembershipID)
	}

	now := time.Now()
	member.CreatedAt = now
	member.UpdatedAt = now

	prevMembers, prevMemberships := s.data.Members, s.data.Memberships
	s.data.Members = append(append([]*domain.Member(nil), prevMembers...), copyMember(member))
	if first != nil {
		first.CreatedAt = now
		iv := *first
		s.data.Memberships = append(append([]*domain.Membership(nil), prevMemberships...), &iv)
	}

	if err := s.flush(); err != nil {
		s.data.Members, s.data.Memberships = prevMembers, prevMemberships
		return err
	}
	return nil
}

// MembershipIDsForYear lists identifiers issued for year
func (s *jsonFileStore) MembershipIDsForYear(ctx context.Context, prefix string, year int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	yearPrefix := fmt.Sprintf("%s-%d-", prefix, year)
	var ids []string
	for _, m := range s.data.Members {
		if strings.HasPrefix(m.MembershipID, yearPrefix) {
			ids = append(ids, m.MembershipID)
		}
	}
	return ids, nil
}

// GetMember gets a member by membership ID
func (s *jsonFileStore) GetMember(ctx context.Context, membershipID string) (*domain.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.indexOf(membershipID)
	if i < 0 {
		return nil, domain.ErrMemberNotFound
	}
	return copyMember(s.data.Members[i]), nil
}

// UpdateMember replaces a member, keeping its creation time
func (s *jsonFileStore) UpdateMember(ctx context.Context, member *domain.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(member.MembershipID)
	if i < 0 {
		return domain.ErrMemberNotFound
	}

	prev := s.data.Members[i]
	member.CreatedAt = prev.CreatedAt
	member.UpdatedAt = time.Now()
	s.data.Members[i] = copyMember(member)

	if err := s.flush(); err != nil {
		s.data.Members[i] = prev
		return err
	}
	return nil
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func matchesFilter(m *domain.Member, f domain.MemberFilter) bool {
	if kw := strings.TrimSpace(f.Keyword); kw != "" {
		if !containsFold(m.FirstName, kw) && !containsFold(m.LastName, kw) && !containsFold(m.PrimaryMobile, kw) {
			return false
		}
	}
	checks := [][2]string{
		{m.MembershipID, f.MembershipID},
		{m.OrganizationName, f.OrganizationName},
		{m.PrimaryMobile, f.PrimaryMobile},
		{m.Email, f.Email},
	}
	for _, c := range checks {
		if v := strings.TrimSpace(c[1]); v != "" && !containsFold(c[0], v) {
			return false
		}
	}
	return true
}

func (s *jsonFileStore) newestFirst(keep func(*domain.Member) bool) []*domain.Member {
	var out []*domain.Member
	for _, m := range s.data.Members {
		if keep(m) {
			out = append(out, copyMember(m))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].MembershipID > out[j].MembershipID
	})
	return out
}

// SearchMembers matches every non-empty filter field as a case-insensitive substring
func (s *jsonFileStore) SearchMembers(ctx context.Context, filter domain.MemberFilter) ([]*domain.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.newestFirst(func(m *domain.Member) bool { return matchesFilter(m, filter) }), nil
}

// ListMembers lists all members, newest first
func (s *jsonFileStore) ListMembers(ctx context.Context) ([]*domain.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.newestFirst(func(*domain.Member) bool { return true }), nil
}

// CountMembers counts all members
func (s *jsonFileStore) CountMembers(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.data.Members)), nil
}

// UpdateStatuses writes recomputed status caches
func (s *jsonFileStore) UpdateStatuses(ctx context.Context, updates []domain.StatusUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := make([]*domain.Member, len(s.data.Members))
	copy(prev, s.data.Members)
	for _, u := range updates {
		i := s.indexOf(u.MembershipID)
		if i < 0 {
			continue
		}
		m := copyMember(s.data.Members[i])
		m.Status = u.Status
		m.StartDate = u.StartDate
		m.EndDate = u.EndDate
		s.data.Members[i] = m
	}

	if err := s.flush(); err != nil {
		s.data.Members = prev
		return err
	}
	return nil
}

// AddMembership appends an interval to an existing member
func (s *jsonFileStore) AddMembership(ctx context.Context, interval *domain.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexOf(interval.MembershipID) < 0 {
		return domain.ErrMemberNotFound
	}

	interval.CreatedAt = time.Now()
	iv := *interval
	prev := s.data.Memberships
	s.data.Memberships = append(append([]*domain.Membership(nil), prev...), &iv)

	if err := s.flush(); err != nil {
		s.data.Memberships = prev
		return err
	}
	return nil
}

// ListMemberships lists a member's intervals, newest start first
func (s *jsonFileStore) ListMemberships(ctx context.Context, membershipID string) ([]*domain.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Membership
	for _, iv := range s.data.Memberships {
		if iv.MembershipID == membershipID {
			c := *iv
			out = append(out, &c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].StartDate.Equal(out[j].StartDate) {
			return out[i].StartDate.After(out[j].StartDate)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Ping checks that the store file is still reachable
func (s *jsonFileStore) Ping(ctx context.Context) error {
	_, err := os.Stat(s.path)
	return err
}

func (s *jsonFileStore) Close() error {
	return nil
}
