package models

import (
	"time"

	"membership-admin/internal/core/domain"

	"gorm.io/gorm"
)

// ============================================================
// Members & Memberships
// ============================================================

// Member represents members table
type Member struct {
	ID           uint   `gorm:"primaryKey" json:"-"`
	MembershipID string `gorm:"uniqueIndex;size:32;not null" json:"membership_id"`

	OrganizationName  string     `gorm:"size:200;index" json:"organization_name"`
	OrganizationRegNo string     `gorm:"size:50" json:"organization_reg_no"`
	OrgPAN            string     `gorm:"column:org_pan;size:20" json:"org_pan"`
	OrgRegisteredOn   *time.Time `gorm:"type:date" json:"org_registered_on"`
	OrgApprovedOn     *time.Time `gorm:"type:date" json:"org_approved_on"`

	FirstName string `gorm:"size:100;index" json:"first_name"`
	LastName  string `gorm:"size:100;index" json:"last_name"`
	MemberPAN string `gorm:"column:member_pan;size:20" json:"member_pan"`

	PrimaryMobile   string `gorm:"size:20;index" json:"primary_mobile"`
	AlternateMobile string `gorm:"size:20" json:"alternate_mobile"`
	Landline        string `gorm:"size:20" json:"landline"`
	Email           string `gorm:"size:100;index" json:"email"`
	Website         string `gorm:"size:200" json:"website"`

	AddressLine1 string `gorm:"size:200" json:"address_line1"`
	AddressLine2 string `gorm:"size:200" json:"address_line2"`
	City         string `gorm:"size:100" json:"city"`
	District     string `gorm:"size:100" json:"district"`
	State        string `gorm:"size:100" json:"state"`
	PinCode      string `gorm:"size:10" json:"pin_code"`

	Logo      string `gorm:"size:255" json:"logo"`
	Signature string `gorm:"size:255" json:"signature"`

	Status    string     `gorm:"size:20;index" json:"status"`
	StartDate time.Time  `gorm:"type:date" json:"start_date"`
	EndDate   *time.Time `gorm:"type:date" json:"end_date"`

	RegistrationDate time.Time `gorm:"type:date;not null" json:"registration_date"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Member) TableName() string {
	return "members"
}

// Membership represents memberships table (append-only intervals)
type Membership struct {
	ID             string     `gorm:"primaryKey;size:36" json:"id"`
	MembershipID   string     `gorm:"size:32;not null;index" json:"membership_id"`
	StartDate      time.Time  `gorm:"type:date;not null" json:"start_date"`
	EndDate        *time.Time `gorm:"type:date" json:"end_date"`
	DurationMonths int        `gorm:"not null;default:0" json:"duration_months"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`

	Member *Member `gorm:"foreignKey:MembershipID;references:MembershipID" json:"-"`
}

func (Membership) TableName() string {
	return "memberships"
}

// ============================================================
// Mapping
// ============================================================

func dateOnly(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return domain.DateOf(t)
}

func dateOnlyPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := domain.DateOf(*t)
	return &d
}

// FromDomainMember converts a domain member into a row
func FromDomainMember(m *domain.Member) *Member {
	return &Member{
		MembershipID:      m.MembershipID,
		OrganizationName:  m.OrganizationName,
		OrganizationRegNo: m.OrganizationRegNo,
		OrgPAN:            m.OrgPAN,
		OrgRegisteredOn:   dateOnlyPtr(m.OrgRegisteredOn),
		OrgApprovedOn:     dateOnlyPtr(m.OrgApprovedOn),
		FirstName:         m.FirstName,
		LastName:          m.LastName,
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
		Logo:              m.Logo,
		Signature:         m.Signature,
		Status:            string(m.Status),
		StartDate:         dateOnly(m.StartDate),
		EndDate:           dateOnlyPtr(m.EndDate),
		RegistrationDate:  dateOnly(m.RegistrationDate),
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

// ToDomain converts a row into a domain member
func (m *Member) ToDomain() *domain.Member {
	return &domain.Member{
		MembershipID:      m.MembershipID,
		OrganizationName:  m.OrganizationName,
		OrganizationRegNo: m.OrganizationRegNo,
		OrgPAN:            m.OrgPAN,
		OrgRegisteredOn:   dateOnlyPtr(m.OrgRegisteredOn),
		OrgApprovedOn:     dateOnlyPtr(m.OrgApprovedOn),
		FirstName:         m.FirstName,
		LastName:          m.LastName,
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
		Logo:              m.Logo,
		Signature:         m.Signature,
		Status:            domain.Status(m.Status),
		StartDate:         dateOnly(m.StartDate),
		EndDate:           dateOnlyPtr(m.EndDate),
		RegistrationDate:  dateOnly(m.RegistrationDate),
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

// FromDomainMembership converts a domain interval into a row
func FromDomainMembership(ms *domain.Membership) *Membership {
	return &Membership{
		ID:             ms.ID,
		MembershipID:   ms.MembershipID,
		StartDate:      dateOnly(ms.StartDate),
		EndDate:        dateOnlyPtr(ms.EndDate),
		DurationMonths: ms.DurationMonths,
		CreatedAt:      ms.CreatedAt,
	}
}

// ToDomain converts a row into a domain interval
func (ms *Membership) ToDomain() *domain.Membership {
	return &domain.Membership{
		ID:             ms.ID,
		MembershipID:   ms.MembershipID,
		StartDate:      dateOnly(ms.StartDate),
		EndDate:        dateOnlyPtr(ms.EndDate),
		DurationMonths: ms.DurationMonths,
		CreatedAt:      ms.CreatedAt,
	}
}

// ============================================================
// Auto Migration
// ============================================================

// AutoMigrate creates or updates the member tables
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Member{},
		&Membership{},
	)
}
