package services

import (
	"context"
	"log"
	"time"

	"membership-admin/internal/core/domain"
)

// Seeder fills an empty store with demo members.
// This is for development only.
type Seeder struct {
	members *MemberService
}

// NewSeeder creates a new seeder instance
func NewSeeder(members *MemberService) *Seeder {
	return &Seeder{members: members}
}

// Run seeds one member per status plus an open-ended one. A store that
// already holds members is left alone.
func (s *Seeder) Run(ctx context.Context) error {
	log.Println("🌱 Running demo seeders...")

	count, err := s.members.store.CountMembers(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		log.Println("⚠️ Demo seed skipped: store is not empty")
		return nil
	}

	today := domain.DateOf(s.members.clock.Now())
	for _, in := range demoMembers(today) {
		detail, err := s.members.Register(ctx, in)
		if err != nil {
			return err
		}
		log.Printf("✅ Demo member created: %s (%s)", detail.Member.MembershipID, detail.Member.Status)
	}

	log.Println("✅ Demo seeding completed")
	return nil
}

func demoMembers(today time.Time) []*RegisterMemberInput {
	at := func(years, months int) string {
		return today.AddDate(years, months, 0).Format(domain.DateLayout)
	}
	profile := func(org, first, email string) ProfileInput {
		return ProfileInput{
			OrganizationName: org,
			FirstName:        first,
			PrimaryMobile:    "9800000000",
			Email:            email,
			AddressLine1:     "1 Main Road",
			City:             "Pune",
			State:            "Maharashtra",
			PinCode:          "411001",
		}
	}

	return []*RegisterMemberInput{
		{
			ProfileInput:  profile("Sunrise Traders", "Asha", "asha@sunrise.example"),
			IntervalInput: IntervalInput{StartDate: at(0, -6), DurationMonths: 12},
		},
		{
			ProfileInput:  profile("Lakeview Cooperative", "Ravi", "ravi@lakeview.example"),
			IntervalInput: IntervalInput{StartDate: at(-2, 0), DurationMonths: 12},
		},
		{
			ProfileInput:  profile("Northgate Foods", "Meera", "meera@northgate.example"),
			IntervalInput: IntervalInput{StartDate: at(0, 1), DurationMonths: 12},
		},
		{
			ProfileInput:  profile("", "Kiran", "kiran@example.com"),
			IntervalInput: IntervalInput{StartDate: at(-1, 0)},
		},
	}
}
