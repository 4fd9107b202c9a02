package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"mime/multipart"
	"strconv"
	"strings"
	"time"

	"membership-admin/internal/adapters/persistence/repositories"
	"membership-admin/internal/core/domain"
	"membership-admin/internal/pkg/metrics"
	"membership-admin/internal/pkg/pagination"
	"membership-admin/internal/pkg/upload"
	"membership-admin/internal/pkg/yearlock"

	"github.com/google/uuid"
)

// MaxAllocationAttempts bounds how often Register retries after losing an
// identifier to a concurrent writer.
const MaxAllocationAttempts = 3

// MemberService is the member record service: registration, lookup, search,
// profile edits and renewals. Status is recomputed on every read.
type MemberService struct {
	store     repositories.MemberStore
	allocator domain.IDAllocator
	locker    yearlock.Locker
	clock     domain.Clock
	uploads   *upload.Store
	metrics   *metrics.Metrics
	onChange  []func()
}

// NewMemberService creates a new member service. uploads and m may be nil.
func NewMemberService(
	store repositories.MemberStore,
	allocator domain.IDAllocator,
	locker yearlock.Locker,
	clock domain.Clock,
	uploads *upload.Store,
	m *metrics.Metrics,
) *MemberService {
	if locker == nil {
		locker = yearlock.NewLocal()
	}
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &MemberService{
		store:     store,
		allocator: allocator,
		locker:    locker,
		clock:     clock,
		uploads:   uploads,
		metrics:   m,
	}
}

// OnChange registers fn to run after every successful write
func (s *MemberService) OnChange(fn func()) {
	s.onChange = append(s.onChange, fn)
}

func (s *MemberService) changed() {
	for _, fn := range s.onChange {
		fn()
	}
}

// ============================================================
// Inputs
// ============================================================

// ProfileInput carries the editable member fields
type ProfileInput struct {
	OrganizationName  string `json:"organization_name" form:"organization_name"`
	OrganizationRegNo string `json:"organization_reg_no" form:"organization_reg_no"`
	OrgPAN            string `json:"org_pan" form:"org_pan"`
	OrgRegisteredOn   string `json:"org_registered_on" form:"org_registered_on"`
	OrgApprovedOn     string `json:"org_approved_on" form:"org_approved_on"`

	FirstName string `json:"first_name" form:"first_name"`
	LastName  string `json:"last_name" form:"last_name"`
	MemberPAN string `json:"member_pan" form:"member_pan"`

	PrimaryMobile   string `json:"primary_mobile" form:"primary_mobile"`
	AlternateMobile string `json:"alternate_mobile" form:"alternate_mobile"`
	Landline        string `json:"landline" form:"landline"`
	Email           string `json:"email" form:"email"`
	Website         string `json:"website" form:"website"`

	AddressLine1 string `json:"address_line1" form:"address_line1"`
	AddressLine2 string `json:"address_line2" form:"address_line2"`
	City         string `json:"city" form:"city"`
	District     string `json:"district" form:"district"`
	State        string `json:"state" form:"state"`
	PinCode      string `json:"pin_code" form:"pin_code"`
}

// IntervalInput describes a membership interval by explicit end date or duration
type IntervalInput struct {
	StartDate      string `json:"start_date" form:"start_date"`
	EndDate        string `json:"end_date" form:"end_date"`
	DurationMonths int    `json:"duration_months" form:"duration_months"`
}

// RegisterMemberInput represents registration input
type RegisterMemberInput struct {
	ProfileInput
	IntervalInput

	Logo      *multipart.FileHeader `json:"-" form:"-"`
	Signature *multipart.FileHeader `json:"-" form:"-"`
}

// UpdateMemberInput is a partial profile edit; nil fields are left unchanged
type UpdateMemberInput struct {
	OrganizationName  *string `json:"organization_name" form:"organization_name"`
	OrganizationRegNo *string `json:"organization_reg_no" form:"organization_reg_no"`
	OrgPAN            *string `json:"org_pan" form:"org_pan"`
	OrgRegisteredOn   *string `json:"org_registered_on" form:"org_registered_on"`
	OrgApprovedOn     *string `json:"org_approved_on" form:"org_approved_on"`

	FirstName *string `json:"first_name" form:"first_name"`
	LastName  *string `json:"last_name" form:"last_name"`
	MemberPAN *string `json:"member_pan" form:"member_pan"`

	PrimaryMobile   *string `json:"primary_mobile" form:"primary_mobile"`
	AlternateMobile *string `json:"alternate_mobile" form:"alternate_mobile"`
	Landline        *string `json:"landline" form:"landline"`
	Email           *string `json:"email" form:"email"`
	Website         *string `json:"website" form:"website"`

	AddressLine1 *string `json:"address_line1" form:"address_line1"`
	AddressLine2 *string `json:"address_line2" form:"address_line2"`
	City         *string `json:"city" form:"city"`
	District     *string `json:"district" form:"district"`
	State        *string `json:"state" form:"state"`
	PinCode      *string `json:"pin_code" form:"pin_code"`

	Logo      *multipart.FileHeader `json:"-" form:"-"`
	Signature *multipart.FileHeader `json:"-" form:"-"`
}

// RenewInput appends an interval. An empty start date continues from the
// latest interval, or starts today when that one has already ended.
type RenewInput struct {
	IntervalInput
}

// SearchInput represents member search parameters
type SearchInput struct {
	domain.MemberFilter
	Status string
	Page   int
	Limit  int
}

// ============================================================
// Register
// ============================================================

// Register validates the input, allocates a membership ID and stores the
// member with its first interval. A lost allocation race is retried up to
// MaxAllocationAttempts times before ErrAllocationConflict is returned.
func (s *MemberService) Register(ctx context.Context, input *RegisterMemberInput) (*MemberDetail, error) {
	now := s.clock.Now()

	// 1. Validate everything before touching storage
	member, err := profileToMember(&input.ProfileInput)
	if err != nil {
		return nil, err
	}
	start, end, months, err := buildInterval(&input.IntervalInput)
	if err != nil {
		return nil, err
	}
	status, err := domain.ResolveStatus(start, end, now)
	if err != nil {
		return nil, err
	}

	member.Status = status
	member.StartDate = start
	member.EndDate = end
	member.RegistrationDate = domain.DateOf(now)

	first := &domain.Membership{
		StartDate:      start,
		EndDate:        end,
		DurationMonths: months,
	}

	// 2. Store uploads; removed again if the member cannot be created
	saved, err := s.saveAssets(member, input.Logo, input.Signature)
	if err != nil {
		return nil, err
	}

	// 3. Allocate and insert
	year := now.Year()
	for attempt := 1; attempt <= MaxAllocationAttempts; attempt++ {
		err = s.allocateAndCreate(ctx, year, member, first)
		if err == nil {
			break
		}
		if !errors.Is(err, domain.ErrDuplicateEntry) {
			break
		}
		if s.metrics != nil {
			s.metrics.AllocationConflicts.Inc()
		}
		log.Printf("⚠️ Membership ID %s taken concurrently (attempt %d/%d)", member.MembershipID, attempt, MaxAllocationAttempts)
		err = fmt.Errorf("%w: %s", domain.ErrAllocationConflict, member.MembershipID)
	}
	if err != nil {
		s.removeAssets(saved...)
		s.recordAllocationFailure(err)
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IDsAllocated.WithLabelValues(strconv.Itoa(year)).Inc()
	}
	s.changed()

	log.Printf("✅ Member registered: %s (%s)", member.MembershipID, member.Status)

	return &MemberDetail{
		Member:      NewMemberResponse(member),
		Memberships: []*MembershipResponse{NewMembershipResponse(first, status)},
	}, nil
}

// allocateAndCreate holds the year lock across read-max and insert
func (s *MemberService) allocateAndCreate(ctx context.Context, year int, member *domain.Member, first *domain.Membership) error {
	unlock, err := s.locker.Lock(ctx, year)
	if err != nil {
		return fmt.Errorf("failed to acquire allocation lock: %w", err)
	}
	defer unlock()

	existing, err := s.store.MembershipIDsForYear(ctx, s.allocator.Prefix, year)
	if err != nil {
		return err
	}
	id, err := s.allocator.Next(existing, year)
	if err != nil {
		return err
	}

	member.MembershipID = id
	first.ID = uuid.NewString()
	first.MembershipID = id

	return s.store.CreateMember(ctx, member, first)
}

func (s *MemberService) recordAllocationFailure(err error) {
	if s.metrics == nil {
		return
	}
	switch {
	case errors.Is(err, domain.ErrAllocationExhausted):
		s.metrics.AllocationFailures.WithLabelValues("exhausted").Inc()
	case errors.Is(err, domain.ErrAllocationConflict):
		s.metrics.AllocationFailures.WithLabelValues("conflict").Inc()
	}
}

// ============================================================
// Read
// ============================================================

// Get returns a member with every interval and its recomputed status.
// A drifted status cache is rewritten on the way out.
func (s *MemberService) Get(ctx context.Context, membershipID string) (*MemberDetail, error) {
	member, err := s.store.GetMember(ctx, membershipID)
	if err != nil {
		return nil, err
	}
	intervals, err := s.store.ListMemberships(ctx, membershipID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if update, drifted := resolveMember(member, intervals, now); drifted {
		if err := s.store.UpdateStatuses(ctx, []domain.StatusUpdate{update}); err != nil {
			log.Printf("⚠️ Failed to refresh status cache for %s: %v", membershipID, err)
		}
	}

	return &MemberDetail{
		Member:      NewMemberResponse(member),
		Memberships: membershipResponses(intervals, now),
	}, nil
}

// Memberships lists a member's intervals with their statuses
func (s *MemberService) Memberships(ctx context.Context, membershipID string) ([]*MembershipResponse, error) {
	if _, err := s.store.GetMember(ctx, membershipID); err != nil {
		return nil, err
	}
	intervals, err := s.store.ListMemberships(ctx, membershipID)
	if err != nil {
		return nil, err
	}
	return membershipResponses(intervals, s.clock.Now()), nil
}

// Search filters members by text fields in the store and by recomputed status here
func (s *MemberService) Search(ctx context.Context, input *SearchInput) ([]*MemberResponse, *pagination.Meta, error) {
	var want domain.Status
	if strings.TrimSpace(input.Status) != "" {
		status, ok := domain.ParseStatus(input.Status)
		if !ok {
			return nil, nil, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidInput, input.Status)
		}
		want = status
	}

	members, err := s.store.SearchMembers(ctx, input.MemberFilter)
	if err != nil {
		return nil, nil, err
	}
	if err := s.resolveAll(ctx, members); err != nil {
		return nil, nil, err
	}

	matched := members[:0]
	for _, m := range members {
		if want == "" || m.Status == want {
			matched = append(matched, m)
		}
	}

	params := pagination.New(input.Page, input.Limit)
	from, to := params.Window(len(matched))

	page := make([]*MemberResponse, 0, to-from)
	for _, m := range matched[from:to] {
		page = append(page, NewMemberResponse(m))
	}
	return page, pagination.GetMeta(params, int64(len(matched))), nil
}

// resolveAll recomputes every member's status in place
func (s *MemberService) resolveAll(ctx context.Context, members []*domain.Member) error {
	now := s.clock.Now()
	for _, m := range members {
		intervals, err := s.store.ListMemberships(ctx, m.MembershipID)
		if err != nil {
			return err
		}
		resolveMember(m, intervals, now)
	}
	return nil
}

// ============================================================
// Write
// ============================================================

// Update applies a partial profile edit. Replaced uploads are deleted once
// the record is saved.
func (s *MemberService) Update(ctx context.Context, membershipID string, input *UpdateMemberInput) (*MemberDetail, error) {
	member, err := s.store.GetMember(ctx, membershipID)
	if err != nil {
		return nil, err
	}
	if err := applyProfile(member, input); err != nil {
		return nil, err
	}

	intervals, err := s.store.ListMemberships(ctx, membershipID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	resolveMember(member, intervals, now)

	oldLogo, oldSignature := member.Logo, member.Signature
	saved, err := s.saveAssets(member, input.Logo, input.Signature)
	if err != nil {
		return nil, err
	}

	if err := s.store.UpdateMember(ctx, member); err != nil {
		s.removeAssets(saved...)
		return nil, err
	}

	if member.Logo != oldLogo {
		s.removeAssets(oldLogo)
	}
	if member.Signature != oldSignature {
		s.removeAssets(oldSignature)
	}
	s.changed()

	log.Printf("✅ Member updated: %s", membershipID)

	return &MemberDetail{
		Member:      NewMemberResponse(member),
		Memberships: membershipResponses(intervals, now),
	}, nil
}

// Renew appends a new interval and refreshes the member's status cache
func (s *MemberService) Renew(ctx context.Context, membershipID string, input *RenewInput) (*MemberDetail, error) {
	member, err := s.store.GetMember(ctx, membershipID)
	if err != nil {
		return nil, err
	}
	intervals, err := s.store.ListMemberships(ctx, membershipID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	interval := input.IntervalInput
	if strings.TrimSpace(interval.StartDate) == "" {
		interval.StartDate = renewalStart(intervals, now).Format(domain.DateLayout)
	}
	start, end, months, err := buildInterval(&interval)
	if err != nil {
		return nil, err
	}
	status, err := domain.ResolveStatus(start, end, now)
	if err != nil {
		return nil, err
	}

	renewal := &domain.Membership{
		ID:             uuid.NewString(),
		MembershipID:   membershipID,
		StartDate:      start,
		EndDate:        end,
		DurationMonths: months,
		CreatedAt:      now,
	}
	if err := s.store.AddMembership(ctx, renewal); err != nil {
		return nil, err
	}

	intervals = append([]*domain.Membership{renewal}, intervals...)
	sortIntervals(intervals)
	update, drifted := resolveMember(member, intervals, now)
	if drifted {
		// the interval is stored; reads recompute the cache anyway
		if err := s.store.UpdateStatuses(ctx, []domain.StatusUpdate{update}); err != nil {
			log.Printf("⚠️ Failed to refresh status cache for %s: %v", membershipID, err)
		}
	}

	if s.metrics != nil {
		s.metrics.Renewals.Inc()
	}
	s.changed()

	log.Printf("✅ Membership renewed: %s %s..%s (%s)", membershipID, start.Format(domain.DateLayout), formatDate(end), status)

	return &MemberDetail{
		Member:      NewMemberResponse(member),
		Memberships: membershipResponses(intervals, now),
	}, nil
}

// RefreshStatuses recomputes every member's status and persists the ones
// that changed. Returns the number of rewritten caches.
func (s *MemberService) RefreshStatuses(ctx context.Context) (int, error) {
	members, err := s.store.ListMembers(ctx)
	if err != nil {
		return 0, err
	}

	now := s.clock.Now()
	var updates []domain.StatusUpdate
	for _, m := range members {
		intervals, err := s.store.ListMemberships(ctx, m.MembershipID)
		if err != nil {
			return 0, err
		}
		if update, drifted := resolveMember(m, intervals, now); drifted {
			updates = append(updates, update)
		}
	}

	if err := s.store.UpdateStatuses(ctx, updates); err != nil {
		return 0, err
	}
	if s.metrics != nil {
		for _, u := range updates {
			s.metrics.StatusRefreshes.WithLabelValues(string(u.Status)).Inc()
		}
	}
	if len(updates) > 0 {
		s.changed()
	}
	return len(updates), nil
}

// ============================================================
// Helpers
// ============================================================

// resolveMember points the member's status cache at its current interval.
// It reports whether the cache differed from the recomputed value.
func resolveMember(m *domain.Member, intervals []*domain.Membership, now time.Time) (domain.StatusUpdate, bool) {
	start, end := m.StartDate, m.EndDate
	if current := domain.CurrentInterval(intervals, now); current != nil {
		start, end = current.StartDate, current.EndDate
	}

	status, err := domain.ResolveStatus(start, end, now)
	if err != nil {
		// no usable interval: leave the cache alone
		return domain.StatusUpdate{}, false
	}

	drifted := status != m.Status ||
		!domain.DateOf(start).Equal(domain.DateOf(m.StartDate)) ||
		!sameDate(end, m.EndDate)

	m.Status = status
	m.StartDate = start
	m.EndDate = end

	return domain.StatusUpdate{
		MembershipID: m.MembershipID,
		Status:       status,
		StartDate:    start,
		EndDate:      end,
	}, drifted
}

// renewalStart is the day after the latest end date, or today once that has passed
func renewalStart(intervals []*domain.Membership, now time.Time) time.Time {
	today := domain.DateOf(now)
	var latest *time.Time
	for _, iv := range intervals {
		if iv.EndDate == nil {
			continue
		}
		if latest == nil || iv.EndDate.After(*latest) {
			latest = iv.EndDate
		}
	}
	if latest == nil {
		return today
	}
	next := domain.DateOf(*latest).AddDate(0, 0, 1)
	if next.Before(today) {
		return today
	}
	return next
}

// buildInterval parses start and derives the end date from either an
// explicit end date or a duration in months. Neither means open-ended.
func buildInterval(in *IntervalInput) (time.Time, *time.Time, int, error) {
	start, err := domain.ParseDate("start_date", in.StartDate)
	if err != nil {
		return time.Time{}, nil, 0, err
	}
	end, err := domain.ParseOptionalDate("end_date", in.EndDate)
	if err != nil {
		return time.Time{}, nil, 0, err
	}

	months := in.DurationMonths
	switch {
	case months < 0:
		return time.Time{}, nil, 0, fmt.Errorf("%w: duration_months must be positive", domain.ErrInvalidInput)
	case months > 0 && end != nil:
		return time.Time{}, nil, 0, fmt.Errorf("%w: give either end_date or duration_months", domain.ErrInvalidInput)
	case months > 0:
		e := domain.EndDateFor(start, months)
		end = &e
	}

	if err := domain.ValidateInterval(start, end); err != nil {
		return time.Time{}, nil, 0, err
	}
	return start, end, months, nil
}

func profileToMember(in *ProfileInput) (*domain.Member, error) {
	orgRegistered, err := domain.ParseOptionalDate("org_registered_on", in.OrgRegisteredOn)
	if err != nil {
		return nil, err
	}
	orgApproved, err := domain.ParseOptionalDate("org_approved_on", in.OrgApprovedOn)
	if err != nil {
		return nil, err
	}

	m := &domain.Member{
		OrganizationName:  strings.TrimSpace(in.OrganizationName),
		OrganizationRegNo: strings.TrimSpace(in.OrganizationRegNo),
		OrgPAN:            strings.ToUpper(strings.TrimSpace(in.OrgPAN)),
		OrgRegisteredOn:   orgRegistered,
		OrgApprovedOn:     orgApproved,
		FirstName:         strings.TrimSpace(in.FirstName),
		LastName:          strings.TrimSpace(in.LastName),
		MemberPAN:         strings.ToUpper(strings.TrimSpace(in.MemberPAN)),
		PrimaryMobile:     strings.TrimSpace(in.PrimaryMobile),
		AlternateMobile:   strings.TrimSpace(in.AlternateMobile),
		Landline:          strings.TrimSpace(in.Landline),
		Email:             strings.ToLower(strings.TrimSpace(in.Email)),
		Website:           strings.TrimSpace(in.Website),
		AddressLine1:      strings.TrimSpace(in.AddressLine1),
		AddressLine2:      strings.TrimSpace(in.AddressLine2),
		City:              strings.TrimSpace(in.City),
		District:          strings.TrimSpace(in.District),
		State:             strings.TrimSpace(in.State),
		PinCode:           strings.TrimSpace(in.PinCode),
	}
	if err := validateMember(m); err != nil {
		return nil, err
	}
	return m, nil
}

func applyProfile(m *domain.Member, in *UpdateMemberInput) error {
	set := func(dst *string, src *string, normalize func(string) string) {
		if src == nil {
			return
		}
		v := strings.TrimSpace(*src)
		if normalize != nil {
			v = normalize(v)
		}
		*dst = v
	}

	set(&m.OrganizationName, in.OrganizationName, nil)
	set(&m.OrganizationRegNo, in.OrganizationRegNo, nil)
	set(&m.OrgPAN, in.OrgPAN, strings.ToUpper)
	set(&m.FirstName, in.FirstName, nil)
	set(&m.LastName, in.LastName, nil)
	set(&m.MemberPAN, in.MemberPAN, strings.ToUpper)
	set(&m.PrimaryMobile, in.PrimaryMobile, nil)
	set(&m.AlternateMobile, in.AlternateMobile, nil)
	set(&m.Landline, in.Landline, nil)
	set(&m.Email, in.Email, strings.ToLower)
	set(&m.Website, in.Website, nil)
	set(&m.AddressLine1, in.AddressLine1, nil)
	set(&m.AddressLine2, in.AddressLine2, nil)
	set(&m.City, in.City, nil)
	set(&m.District, in.District, nil)
	set(&m.State, in.State, nil)
	set(&m.PinCode, in.PinCode, nil)

	if in.OrgRegisteredOn != nil {
		t, err := domain.ParseOptionalDate("org_registered_on", *in.OrgRegisteredOn)
		if err != nil {
			return err
		}
		m.OrgRegisteredOn = t
	}
	if in.OrgApprovedOn != nil {
		t, err := domain.ParseOptionalDate("org_approved_on", *in.OrgApprovedOn)
		if err != nil {
			return err
		}
		m.OrgApprovedOn = t
	}

	return validateMember(m)
}

func validateMember(m *domain.Member) error {
	if m.OrganizationName == "" && m.FirstName == "" {
		return fmt.Errorf("%w: organization_name or first_name is required", domain.ErrInvalidInput)
	}
	if m.Email != "" && !strings.Contains(m.Email, "@") {
		return fmt.Errorf("%w: email %q is not valid", domain.ErrInvalidInput, m.Email)
	}
	return nil
}

// saveAssets stores the given uploads and points member at them.
// It returns the stored paths so callers can undo on failure.
func (s *MemberService) saveAssets(member *domain.Member, logo, signature *multipart.FileHeader) ([]string, error) {
	if logo == nil && signature == nil {
		return nil, nil
	}
	if s.uploads == nil {
		return nil, fmt.Errorf("%w: file uploads are disabled", domain.ErrInvalidInput)
	}

	var saved []string
	for _, asset := range []struct {
		kind string
		file *multipart.FileHeader
		dst  *string
	}{
		{upload.KindLogo, logo, &member.Logo},
		{upload.KindSignature, signature, &member.Signature},
	} {
		if asset.file == nil {
			continue
		}
		rel, err := s.uploads.Save(asset.kind, asset.file)
		if err != nil {
			s.removeAssets(saved...)
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrInvalidInput, asset.kind, err)
		}
		saved = append(saved, rel)
		*asset.dst = rel
		if s.metrics != nil {
			s.metrics.Uploads.WithLabelValues(asset.kind).Inc()
		}
	}
	return saved, nil
}

func (s *MemberService) removeAssets(paths ...string) {
	if s.uploads == nil {
		return
	}
	for _, p := range paths {
		if err := s.uploads.Remove(p); err != nil {
			log.Printf("⚠️ Failed to remove upload %s: %v", p, err)
		}
	}
}

func sameDate(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return domain.DateOf(*a).Equal(domain.DateOf(*b))
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "open"
	}
	return t.Format(domain.DateLayout)
}

// ListResolved lists every member, newest first, with statuses recomputed
func (s *MemberService) ListResolved(ctx context.Context) ([]*domain.Member, error) {
	members, err := s.store.ListMembers(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.resolveAll(ctx, members); err != nil {
		return nil, err
	}
	return members, nil
}
