package domain

import "time"

// Role represents the admin role carried in access tokens
type Role string

const (
	RoleAdmin Role = "ADMIN"
)

// Member represents an organization/individual membership record
type Member struct {
	MembershipID string // MEM-{year}-{sequence}, immutable once assigned

	// Organization
	OrganizationName  string
	OrganizationRegNo string
	OrgPAN            string
	OrgRegisteredOn   *time.Time
	OrgApprovedOn     *time.Time

	// Person
	FirstName string
	LastName  string
	MemberPAN string

	// Contact
	PrimaryMobile   string
	AlternateMobile string
	Landline        string
	Email           string
	Website         string

	// Address
	AddressLine1 string
	AddressLine2 string
	City         string
	District     string
	State        string
	PinCode      string

	// Assets (paths relative to the upload root)
	Logo      string
	Signature string

	// Cached from the current interval; recomputed on every read
	Status    Status
	StartDate time.Time
	EndDate   *time.Time

	RegistrationDate time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// FullName returns first and last name joined
func (m *Member) FullName() string {
	if m.LastName == "" {
		return m.FirstName
	}
	if m.FirstName == "" {
		return m.LastName
	}
	return m.FirstName + " " + m.LastName
}

// Membership is a validity interval owned by a member.
// Intervals are append-only: renewal creates a new one.
type Membership struct {
	ID             string
	MembershipID   string
	StartDate      time.Time
	EndDate        *time.Time
	DurationMonths int
	CreatedAt      time.Time
}

// StatusUpdate carries a recomputed status cache for one member
type StatusUpdate struct {
	MembershipID string
	Status       Status
	StartDate    time.Time
	EndDate      *time.Time
}

// MemberFilter narrows member searches. Empty fields are ignored.
type MemberFilter struct {
	Keyword          string // first name, last name or primary mobile
	MembershipID     string
	OrganizationName string
	PrimaryMobile    string
	Email            string
}
