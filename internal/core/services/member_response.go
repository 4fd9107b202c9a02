package services

import (
	"sort"
	"time"

	"membership-admin/internal/core/domain"
)

// MemberResponse is the API view of a member
type MemberResponse struct {
	MembershipID string `json:"membership_id"`

	OrganizationName  string  `json:"organization_name"`
	OrganizationRegNo string  `json:"organization_reg_no,omitempty"`
	OrgPAN            string  `json:"org_pan,omitempty"`
	OrgRegisteredOn   *string `json:"org_registered_on,omitempty"`
	OrgApprovedOn     *string `json:"org_approved_on,omitempty"`

	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	FullName  string `json:"full_name"`
	MemberPAN string `json:"member_pan,omitempty"`

	PrimaryMobile   string `json:"primary_mobile"`
	AlternateMobile string `json:"alternate_mobile,omitempty"`
	Landline        string `json:"landline,omitempty"`
	Email           string `json:"email"`
	Website         string `json:"website,omitempty"`

	AddressLine1 string `json:"address_line1"`
	AddressLine2 string `json:"address_line2,omitempty"`
	City         string `json:"city"`
	District     string `json:"district,omitempty"`
	State        string `json:"state"`
	PinCode      string `json:"pin_code"`

	LogoURL      string `json:"logo_url,omitempty"`
	SignatureURL string `json:"signature_url,omitempty"`

	Status    domain.Status `json:"status"`
	StartDate string        `json:"start_date"`
	EndDate   *string       `json:"end_date"`

	RegistrationDate string    `json:"registration_date"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// MembershipResponse is the API view of one interval
type MembershipResponse struct {
	ID             string        `json:"id"`
	MembershipID   string        `json:"membership_id"`
	StartDate      string        `json:"start_date"`
	EndDate        *string       `json:"end_date"`
	DurationMonths int           `json:"duration_months,omitempty"`
	Status         domain.Status `json:"status"`
	CreatedAt      time.Time     `json:"created_at"`
}

// MemberDetail is a member profile with its interval history
type MemberDetail struct {
	Member      *MemberResponse       `json:"member"`
	Memberships []*MembershipResponse `json:"memberships"`
}

// UploadURLPrefix is where stored assets are served from
const UploadURLPrefix = "/uploads/"

// NewMemberResponse converts a domain member
func NewMemberResponse(m *domain.Member) *MemberResponse {
	r := &MemberResponse{
		MembershipID:      m.MembershipID,
		OrganizationName:  m.OrganizationName,
		OrganizationRegNo: m.OrganizationRegNo,
		OrgPAN:            m.OrgPAN,
		OrgRegisteredOn:   datePtr(m.OrgRegisteredOn),
		OrgApprovedOn:     datePtr(m.OrgApprovedOn),
		FirstName:         m.FirstName,
		LastName:          m.LastName,
		FullName:          m.FullName(),
		MemberPAN:         m.MemberPAN,
		PrimaryMobile:     m.PrimaryMobile,
		AlternateMobile:   m.AlternateMobile,
		Landline:          m.Landline,
		Email:             m.Email,
		Website:           m.Website,
		AddressLine1:      m.AddressLine1,
		AddressLine2:      m.AddressLine2,
		City:              m.City,
		District:          m.District,
		State:             m.State,
		PinCode:           m.PinCode,
		Status:            m.Status,
		StartDate:         m.StartDate.Format(domain.DateLayout),
		EndDate:           datePtr(m.EndDate),
		RegistrationDate:  m.RegistrationDate.Format(domain.DateLayout),
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
	if m.Logo != "" {
		r.LogoURL = UploadURLPrefix + m.Logo
	}
	if m.Signature != "" {
		r.SignatureURL = UploadURLPrefix + m.Signature
	}
	return r
}

// NewMembershipResponse converts an interval with its resolved status
func NewMembershipResponse(iv *domain.Membership, status domain.Status) *MembershipResponse {
	return &MembershipResponse{
		ID:             iv.ID,
		MembershipID:   iv.MembershipID,
		StartDate:      iv.StartDate.Format(domain.DateLayout),
		EndDate:        datePtr(iv.EndDate),
		DurationMonths: iv.DurationMonths,
		Status:         status,
		CreatedAt:      iv.CreatedAt,
	}
}

// membershipResponses resolves each interval against now. Intervals that
// fail validation are reported as expired rather than dropped.
func membershipResponses(intervals []*domain.Membership, now time.Time) []*MembershipResponse {
	out := make([]*MembershipResponse, 0, len(intervals))
	for _, iv := range intervals {
		status, err := domain.ResolveStatus(iv.StartDate, iv.EndDate, now)
		if err != nil {
			status = domain.StatusExpired
		}
		out = append(out, NewMembershipResponse(iv, status))
	}
	return out
}

// sortIntervals orders newest start first, matching the stores
func sortIntervals(intervals []*domain.Membership) {
	sort.SliceStable(intervals, func(i, j int) bool {
		return intervals[i].StartDate.After(intervals[j].StartDate)
	})
}

func datePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(domain.DateLayout)
	return &s
}
