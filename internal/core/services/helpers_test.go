package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"membership-admin/internal/adapters/persistence/repositories"
	"membership-admin/internal/core/domain"
	"membership-admin/internal/pkg/metrics"
	"membership-admin/internal/pkg/yearlock"

	"github.com/stretchr/testify/require"
)

// testClock is a settable clock
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(date string) *testClock {
	t, err := time.Parse(domain.DateLayout, date)
	if err != nil {
		panic(err)
	}
	return &testClock{now: t.Add(10 * time.Hour)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(date string) {
	t, err := time.Parse(domain.DateLayout, date)
	if err != nil {
		panic(err)
	}
	c.mu.Lock()
	c.now = t.Add(10 * time.Hour)
	c.mu.Unlock()
}

func newJSONStore(t *testing.T) repositories.MemberStore {
	t.Helper()
	store, err := repositories.NewJSONFileStore(filepath.Join(t.TempDir(), "members.json"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func newTestService(t *testing.T, clock domain.Clock) (*MemberService, repositories.MemberStore) {
	t.Helper()
	store := newJSONStore(t)
	svc := NewMemberService(store, domain.NewIDAllocator("MEM", 4), yearlock.NewLocal(), clock, nil, metrics.New())
	return svc, store
}

func registerInput(first, start string, months int) *RegisterMemberInput {
	return &RegisterMemberInput{
		ProfileInput: ProfileInput{
			OrganizationName: first + " Traders",
			FirstName:        first,
			LastName:         "Sharma",
			PrimaryMobile:    "98765" + fmt.Sprintf("%05d", len(first)),
			Email:            first + "@example.com",
			City:             "Pune",
		},
		IntervalInput: IntervalInput{
			StartDate:      start,
			DurationMonths: months,
		},
	}
}

func fileHeader(t *testing.T, name string, content []byte) *multipart.FileHeader {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	form, err := multipart.NewReader(&body, w.Boundary()).ReadForm(1 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { form.RemoveAll() })
	return form.File["file"][0]
}

// racingStore makes the first n allocation reads wait for each other so
// they all observe the same maximum
type racingStore struct {
	repositories.MemberStore

	mu      sync.Mutex
	waiting int
	release chan struct{}
}

func newRacingStore(inner repositories.MemberStore, n int) *racingStore {
	return &racingStore{MemberStore: inner, waiting: n, release: make(chan struct{})}
}

func (s *racingStore) MembershipIDsForYear(ctx context.Context, prefix string, year int) ([]string, error) {
	ids, err := s.MemberStore.MembershipIDsForYear(ctx, prefix, year)

	s.mu.Lock()
	if s.waiting == 0 {
		s.mu.Unlock()
		return ids, err
	}
	s.waiting--
	if s.waiting == 0 {
		close(s.release)
	}
	s.mu.Unlock()

	select {
	case <-s.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return ids, err
}

// conflictStore rejects every insert as a duplicate
type conflictStore struct {
	repositories.MemberStore

	mu      sync.Mutex
	inserts int
}

func (s *conflictStore) CreateMember(ctx context.Context, member *domain.Member, first *domain.Membership) error {
	s.mu.Lock()
	s.inserts++
	s.mu.Unlock()
	return fmt.Errorf("%w: %s", domain.ErrDuplicateEntry, member.MembershipID)
}

// statusWriteFailStore fails every status cache write
type statusWriteFailStore struct {
	repositories.MemberStore
}

func (s statusWriteFailStore) UpdateStatuses(context.Context, []domain.StatusUpdate) error {
	return errors.New("status cache unavailable")
}
