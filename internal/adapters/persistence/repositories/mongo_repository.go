package repositories

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"membership-admin/internal/core/domain"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	mongoMembersCollection     = "members"
	mongoMembershipsCollection = "memberships"
)

// mongoMember is the members collection document
type mongoMember struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	MembershipID string             `bson:"membership_id"`

	OrganizationName  string     `bson:"organization_name"`
	OrganizationRegNo string     `bson:"organization_reg_no"`
	OrgPAN            string     `bson:"org_pan"`
	OrgRegisteredOn   *time.Time `bson:"org_registered_on,omitempty"`
	OrgApprovedOn     *time.Time `bson:"org_approved_on,omitempty"`

	FirstName string `bson:"first_name"`
	LastName  string `bson:"last_name"`
	MemberPAN string `bson:"member_pan"`

	PrimaryMobile   string `bson:"primary_mobile"`
	AlternateMobile string `bson:"alternate_mobile"`
	Landline        string `bson:"landline"`
	Email           string `bson:"email"`
	Website         string `bson:"website"`

	AddressLine1 string `bson:"address_line1"`
	AddressLine2 string `bson:"address_line2"`
	City         string `bson:"city"`
	District     string `bson:"district"`
	State        string `bson:"state"`
	PinCode      string `bson:"pin_code"`

	Logo      string `bson:"logo"`
	Signature string `bson:"signature"`

	Status    string     `bson:"status"`
	StartDate time.Time  `bson:"start_date"`
	EndDate   *time.Time `bson:"end_date,omitempty"`

	RegistrationDate time.Time `bson:"registration_date"`
	CreatedAt        time.Time `bson:"created_at"`
	UpdatedAt        time.Time `bson:"updated_at"`
}

// mongoMembership is the memberships collection document
type mongoMembership struct {
	ID             string     `bson:"_id"`
	MembershipID   string     `bson:"membership_id"`
	StartDate      time.Time  `bson:"start_date"`
	EndDate        *time.Time `bson:"end_date,omitempty"`
	DurationMonths int        `bson:"duration_months"`
	CreatedAt      time.Time  `bson:"created_at"`
}

func toMongoMember(m *domain.Member) mongoMember {
	return mongoMember{
		MembershipID:      m.MembershipID,
		OrganizationName:  m.OrganizationName,
		OrganizationRegNo: m.OrganizationRegNo,
		OrgPAN:            m.OrgPAN,
		OrgRegisteredOn:   m.OrgRegisteredOn,
		OrgApprovedOn:     m.OrgApprovedOn,
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
		StartDate:         m.StartDate,
		EndDate:           m.EndDate,
		RegistrationDate:  m.RegistrationDate,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

// BSON datetimes come back in UTC, which keeps the stored calendar date intact.
func (d *mongoMember) toDomain() *domain.Member {
	return &domain.Member{
		MembershipID:      d.MembershipID,
		OrganizationName:  d.OrganizationName,
		OrganizationRegNo: d.OrganizationRegNo,
		OrgPAN:            d.OrgPAN,
		OrgRegisteredOn:   utcPtr(d.OrgRegisteredOn),
		OrgApprovedOn:     utcPtr(d.OrgApprovedOn),
		FirstName:         d.FirstName,
		LastName:          d.LastName,
		MemberPAN:         d.MemberPAN,
		PrimaryMobile:     d.PrimaryMobile,
		AlternateMobile:   d.AlternateMobile,
		Landline:          d.Landline,
		Email:             d.Email,
		Website:           d.Website,
		AddressLine1:      d.AddressLine1,
		AddressLine2:      d.AddressLine2,
		City:              d.City,
		District:          d.District,
		State:             d.State,
		PinCode:           d.PinCode,
		Logo:              d.Logo,
		Signature:         d.Signature,
		Status:            domain.Status(d.Status),
		StartDate:         d.StartDate.UTC(),
		EndDate:           utcPtr(d.EndDate),
		RegistrationDate:  d.RegistrationDate.UTC(),
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// mongoMemberStore implements MemberStore on MongoDB. A unique index on
// members.membership_id rejects racing allocations.
type mongoMemberStore struct {
	client      *mongo.Client
	members     *mongo.Collection
	memberships *mongo.Collection
}

// NewMongoMemberStore connects to uri, selects database and ensures indexes
func NewMongoMemberStore(ctx context.Context, uri, database string) (MemberStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	db := client.Database(database)
	s := &mongoMemberStore{
		client:      client,
		members:     db.Collection(mongoMembersCollection),
		memberships: db.Collection(mongoMembershipsCollection),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}

func (s *mongoMemberStore) ensureIndexes(ctx context.Context) error {
	_, err := s.members.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "membership_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create member indexes: %w", err)
	}
	_, err = s.memberships.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "membership_id", Value: 1}, {Key: "start_date", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create membership indexes: %w", err)
	}
	return nil
}

// CreateMember inserts the member first so the unique index decides the race,
// then the interval; a failed interval insert removes the member again.
func (s *mongoMemberStore) CreateMember(ctx context.Context, member *domain.Member, first *domain.Membership) error {
	now := time.Now().UTC()
	member.CreatedAt = now
	member.UpdatedAt = now

	if _, err := s.members.InsertOne(ctx, toMongoMember(member)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s", domain.ErrDuplicateEntry, member.MembershipID)
		}
		return err
	}

	if first != nil {
		first.CreatedAt = now
		if _, err := s.memberships.InsertOne(ctx, toMongoMembership(first)); err != nil {
			if _, delErr := s.members.DeleteOne(ctx, bson.M{"membership_id": member.MembershipID}); delErr != nil {
				return errors.Join(err, delErr)
			}
			return err
		}
	}
	return nil
}

func toMongoMembership(iv *domain.Membership) mongoMembership {
	return mongoMembership{
		ID:             iv.ID,
		MembershipID:   iv.MembershipID,
		StartDate:      iv.StartDate,
		EndDate:        iv.EndDate,
		DurationMonths: iv.DurationMonths,
		CreatedAt:      iv.CreatedAt,
	}
}

// MembershipIDsForYear lists identifiers issued for year
func (s *mongoMemberStore) MembershipIDsForYear(ctx context.Context, prefix string, year int) ([]string, error) {
	pattern := "^" + regexp.QuoteMeta(fmt.Sprintf("%s-%d-", prefix, year))
	cur, err := s.members.Find(ctx,
		bson.M{"membership_id": bson.M{"$regex": pattern}},
		options.Find().SetProjection(bson.M{"membership_id": 1}),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var ids []string
	for cur.Next(ctx) {
		var doc struct {
			MembershipID string `bson:"membership_id"`
		}
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		ids = append(ids, doc.MembershipID)
	}
	return ids, cur.Err()
}

// GetMember gets a member by membership ID
func (s *mongoMemberStore) GetMember(ctx context.Context, membershipID string) (*domain.Member, error) {
	var doc mongoMember
	err := s.members.FindOne(ctx, bson.M{"membership_id": membershipID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrMemberNotFound
		}
		return nil, err
	}
	return doc.toDomain(), nil
}

// UpdateMember overwrites every mutable field of a member
func (s *mongoMemberStore) UpdateMember(ctx context.Context, member *domain.Member) error {
	member.UpdatedAt = time.Now().UTC()
	doc := toMongoMember(member)

	set := bson.M{}
	raw, err := bson.Marshal(doc)
	if err != nil {
		return err
	}
	if err := bson.Unmarshal(raw, &set); err != nil {
		return err
	}
	for _, key := range []string{"_id", "membership_id", "created_at"} {
		delete(set, key)
	}
	update := bson.M{"$set": set}
	if member.EndDate == nil {
		update["$unset"] = bson.M{"end_date": ""}
	}

	res, err := s.members.UpdateOne(ctx, bson.M{"membership_id": member.MembershipID}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrMemberNotFound
	}
	return nil
}

func containsRegex(value string) bson.M {
	return bson.M{"$regex": regexp.QuoteMeta(strings.TrimSpace(value)), "$options": "i"}
}

// SearchMembers matches every non-empty filter field as a case-insensitive substring
func (s *mongoMemberStore) SearchMembers(ctx context.Context, filter domain.MemberFilter) ([]*domain.Member, error) {
	query := bson.M{}
	if strings.TrimSpace(filter.Keyword) != "" {
		re := containsRegex(filter.Keyword)
		query["$or"] = bson.A{
			bson.M{"first_name": re},
			bson.M{"last_name": re},
			bson.M{"primary_mobile": re},
		}
	}
	for field, value := range map[string]string{
		"membership_id":     filter.MembershipID,
		"organization_name": filter.OrganizationName,
		"primary_mobile":    filter.PrimaryMobile,
		"email":             filter.Email,
	} {
		if strings.TrimSpace(value) != "" {
			query[field] = containsRegex(value)
		}
	}
	return s.findMembers(ctx, query)
}

// ListMembers lists all members, newest first
func (s *mongoMemberStore) ListMembers(ctx context.Context) ([]*domain.Member, error) {
	return s.findMembers(ctx, bson.M{})
}

func (s *mongoMemberStore) findMembers(ctx context.Context, query bson.M) ([]*domain.Member, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "membership_id", Value: -1}})
	cur, err := s.members.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var docs []mongoMember
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	members := make([]*domain.Member, len(docs))
	for i := range docs {
		members[i] = docs[i].toDomain()
	}
	return members, nil
}

// CountMembers counts all members
func (s *mongoMemberStore) CountMembers(ctx context.Context) (int64, error) {
	return s.members.CountDocuments(ctx, bson.M{})
}

// UpdateStatuses writes recomputed status caches with one bulk write
func (s *mongoMemberStore) UpdateStatuses(ctx context.Context, updates []domain.StatusUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	writes := make([]mongo.WriteModel, 0, len(updates))
	for _, u := range updates {
		update := bson.M{"$set": bson.M{"status": string(u.Status), "start_date": u.StartDate}}
		if u.EndDate != nil {
			update["$set"].(bson.M)["end_date"] = *u.EndDate
		} else {
			update["$unset"] = bson.M{"end_date": ""}
		}
		writes = append(writes, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"membership_id": u.MembershipID}).
			SetUpdate(update))
	}
	_, err := s.members.BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(false))
	return err
}

// AddMembership appends an interval to an existing member
func (s *mongoMemberStore) AddMembership(ctx context.Context, interval *domain.Membership) error {
	n, err := s.members.CountDocuments(ctx, bson.M{"membership_id": interval.MembershipID})
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrMemberNotFound
	}
	interval.CreatedAt = time.Now().UTC()
	_, err = s.memberships.InsertOne(ctx, toMongoMembership(interval))
	return err
}

// ListMemberships lists a member's intervals, newest start first
func (s *mongoMemberStore) ListMemberships(ctx context.Context, membershipID string) ([]*domain.Membership, error) {
	opts := options.Find().SetSort(bson.D{{Key: "start_date", Value: -1}, {Key: "created_at", Value: -1}})
	cur, err := s.memberships.Find(ctx, bson.M{"membership_id": membershipID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var docs []mongoMembership
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	intervals := make([]*domain.Membership, len(docs))
	for i, d := range docs {
		intervals[i] = &domain.Membership{
			ID:             d.ID,
			MembershipID:   d.MembershipID,
			StartDate:      d.StartDate.UTC(),
			EndDate:        utcPtr(d.EndDate),
			DurationMonths: d.DurationMonths,
			CreatedAt:      d.CreatedAt,
		}
	}
	return intervals, nil
}

// Ping checks server connectivity
func (s *mongoMemberStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close disconnects the client
func (s *mongoMemberStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
