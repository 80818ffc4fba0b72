package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"travel-backend/internal/config"
	"travel-backend/internal/models"
)

var errInjected = errors.New("injected failure")

// memDB is an in-memory stand-in for Postgres. Transactions work on a clone
// that replaces the committed state only when the unit of work succeeds.
type memDB struct {
	orgs       map[uuid.UUID]models.Organization
	travellers map[uuid.UUID]models.Traveller
	bookings   map[uuid.UUID]models.Booking
	audits     map[uuid.UUID]models.MergeAudit
	auditSeq   []uuid.UUID

	// failAuditCreate makes the next audit insert fail.
	failAuditCreate bool
	listCalls       int
}

func newMemDB() *memDB {
	return &memDB{
		orgs:       map[uuid.UUID]models.Organization{},
		travellers: map[uuid.UUID]models.Traveller{},
		bookings:   map[uuid.UUID]models.Booking{},
		audits:     map[uuid.UUID]models.MergeAudit{},
	}
}

func (db *memDB) clone() *memDB {
	c := newMemDB()
	for k, v := range db.orgs {
		c.orgs[k] = v
	}
	for k, v := range db.travellers {
		c.travellers[k] = v
	}
	for k, v := range db.bookings {
		c.bookings[k] = v
	}
	for k, v := range db.audits {
		c.audits[k] = v
	}
	c.auditSeq = append([]uuid.UUID(nil), db.auditSeq...)
	c.failAuditCreate = db.failAuditCreate
	c.listCalls = db.listCalls
	return c
}

func (db *memDB) stores() Stores {
	return Stores{
		Travellers:    memTravellers{db},
		Bookings:      memBookings{db},
		Audits:        memAudits{db},
		Organizations: memOrgs{db},
	}
}

func (db *memDB) addOrg(name, orgType string, agent *uuid.UUID) uuid.UUID {
	id := uuid.New()
	db.orgs[id] = models.Organization{ID: id, Name: name, OrgType: orgType, Code: name, TravelAgentID: agent, IsActive: true}
	return id
}

func (db *memDB) addTraveller(org uuid.UUID, first, last, employeeID string) uuid.UUID {
	id := uuid.New()
	db.travellers[id] = models.Traveller{
		ID:             id,
		OrganizationID: org,
		FirstName:      first,
		LastName:       last,
		Email:          strings.ToLower(first) + "@example.com",
		EmployeeID:     employeeID,
		Department:     "Sales",
		CostCenter:     "CC1",
		IsActive:       true,
		CreatedAt:      time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	return id
}

func (db *memDB) addBooking(org, traveller uuid.UUID, consultant string) uuid.UUID {
	id := uuid.New()
	db.bookings[id] = models.Booking{
		ID:                   id,
		OrganizationID:       org,
		TravellerID:          traveller,
		TravelConsultantText: consultant,
		Status:               "CONFIRMED",
	}
	return id
}

func inScope(orgIDs []uuid.UUID, org uuid.UUID) bool {
	if orgIDs == nil {
		return true
	}
	for _, id := range orgIDs {
		if id == org {
			return true
		}
	}
	return false
}

func sortIDs(ids []uuid.UUID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
}

type memTravellers struct{ db *memDB }

func (s memTravellers) ListActive(_ context.Context, orgIDs []uuid.UUID) ([]*models.Traveller, error) {
	s.db.listCalls++
	var out []*models.Traveller
	for _, t := range s.db.travellers {
		if !t.IsActive || !inScope(orgIDs, t.OrganizationID) {
			continue
		}
		t := t
		t.OrganizationName = s.db.orgs[t.OrganizationID].Name
		for _, b := range s.db.bookings {
			if b.TravellerID == t.ID {
				t.BookingCount++
			}
		}
		out = append(out, &t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OrganizationID != out[j].OrganizationID {
			return out[i].OrganizationID.String() < out[j].OrganizationID.String()
		}
		if out[i].LastName != out[j].LastName {
			return out[i].LastName < out[j].LastName
		}
		return out[i].FirstName < out[j].FirstName
	})
	return out, nil
}

func (s memTravellers) GetForUpdate(_ context.Context, id uuid.UUID) (*models.Traveller, error) {
	t, ok := s.db.travellers[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	t.OrganizationName = s.db.orgs[t.OrganizationID].Name
	return &t, nil
}

func (s memTravellers) GetManyForUpdate(ctx context.Context, ids []uuid.UUID) ([]*models.Traveller, error) {
	sorted := append([]uuid.UUID(nil), ids...)
	sortIDs(sorted)
	var out []*models.Traveller
	for _, id := range sorted {
		if t, err := s.GetForUpdate(ctx, id); err == nil {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s memTravellers) Update(_ context.Context, t *models.Traveller) error {
	if _, ok := s.db.travellers[t.ID]; !ok {
		return errors.New("traveller vanished")
	}
	stored := *t
	stored.OrganizationName = ""
	stored.BookingCount = 0
	s.db.travellers[t.ID] = stored
	return nil
}

func (s memTravellers) Insert(_ context.Context, t *models.Traveller) error {
	if _, ok := s.db.travellers[t.ID]; ok {
		return &pgconn.PgError{Code: "23505"}
	}
	s.db.travellers[t.ID] = *t
	return nil
}

func (s memTravellers) DeleteMany(_ context.Context, ids []uuid.UUID) (int64, error) {
	var n int64
	for _, id := range ids {
		if _, ok := s.db.travellers[id]; ok {
			delete(s.db.travellers, id)
			n++
		}
	}
	return n, nil
}

type memBookings struct{ db *memDB }

func (s memBookings) LockIDsByTraveller(_ context.Context, travellerID uuid.UUID) ([]uuid.UUID, error) {
	ids := []uuid.UUID{}
	for _, b := range s.db.bookings {
		if b.TravellerID == travellerID {
			ids = append(ids, b.ID)
		}
	}
	sortIDs(ids)
	return ids, nil
}

func (s memBookings) Reassign(_ context.Context, ids []uuid.UUID, from, to uuid.UUID) (int64, error) {
	var n int64
	for _, id := range ids {
		b, ok := s.db.bookings[id]
		if ok && b.TravellerID == from {
			b.TravellerID = to
			s.db.bookings[id] = b
			n++
		}
	}
	return n, nil
}

func (s memBookings) DistinctConsultantTexts(_ context.Context, orgIDs []uuid.UUID) ([]models.ConsultantText, error) {
	counts := map[string]int{}
	for _, b := range s.db.bookings {
		if b.TravelConsultantText != "" && inScope(orgIDs, b.OrganizationID) {
			counts[b.TravelConsultantText]++
		}
	}
	var out []models.ConsultantText
	for text, n := range counts {
		out = append(out, models.ConsultantText{Text: text, BookingCount: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Text < out[j].Text })
	return out, nil
}

func (s memBookings) LockIDsByConsultantText(_ context.Context, orgIDs []uuid.UUID, text string) ([]uuid.UUID, error) {
	ids := []uuid.UUID{}
	for _, b := range s.db.bookings {
		if b.TravelConsultantText == text && inScope(orgIDs, b.OrganizationID) {
			ids = append(ids, b.ID)
		}
	}
	sortIDs(ids)
	return ids, nil
}

func (s memBookings) ReplaceConsultantText(_ context.Context, ids []uuid.UUID, from, to string) (int64, error) {
	var n int64
	for _, id := range ids {
		b, ok := s.db.bookings[id]
		if ok && b.TravelConsultantText == from {
			b.TravelConsultantText = to
			s.db.bookings[id] = b
			n++
		}
	}
	return n, nil
}

type memAudits struct{ db *memDB }

func (s memAudits) Create(_ context.Context, a *models.MergeAudit) error {
	if s.db.failAuditCreate {
		return errInjected
	}
	s.db.audits[a.ID] = *a
	s.db.auditSeq = append(s.db.auditSeq, a.ID)
	return nil
}

func (s memAudits) Get(_ context.Context, id uuid.UUID) (*models.MergeAudit, error) {
	a, ok := s.db.audits[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &a, nil
}

func (s memAudits) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.MergeAudit, error) {
	return s.Get(ctx, id)
}

func (s memAudits) List(_ context.Context, f models.MergeAuditFilter) ([]*models.MergeAudit, error) {
	out := []*models.MergeAudit{}
	for i := len(s.db.auditSeq) - 1; i >= 0; i-- {
		a := s.db.audits[s.db.auditSeq[i]]
		if f.OrganizationIDs != nil && (a.OrganizationID == nil || !inScope(f.OrganizationIDs, *a.OrganizationID)) {
			continue
		}
		if f.MergeType != "" && a.MergeType != f.MergeType {
			continue
		}
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(a.Summary), strings.ToLower(f.Search)) {
			continue
		}
		out = append(out, &a)
	}
	return out, nil
}

func (s memAudits) MarkUndone(_ context.Context, id uuid.UUID, undoneBy *int, at time.Time) (bool, error) {
	a, ok := s.db.audits[id]
	if !ok || a.Status != models.MergeStatusCompleted {
		return false, nil
	}
	a.Status = models.MergeStatusUndone
	a.UndoneAt = &at
	a.UndoneByID = undoneBy
	s.db.audits[id] = a
	return true, nil
}

type memOrgs struct{ db *memDB }

func (s memOrgs) Get(_ context.Context, id uuid.UUID) (*models.Organization, error) {
	o, ok := s.db.orgs[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &o, nil
}

func (s memOrgs) ListCustomerIDs(_ context.Context, agentID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for _, o := range s.db.orgs {
		if o.TravelAgentID != nil && *o.TravelAgentID == agentID {
			ids = append(ids, o.ID)
		}
	}
	sortIDs(ids)
	return ids, nil
}

type memTransactor struct{ db *memDB }

func (t memTransactor) WithinTx(_ context.Context, fn func(Stores) error) error {
	work := t.db.clone()
	if err := fn(work.stores()); err != nil {
		return err
	}
	*t.db = *work
	return nil
}

type memCache struct {
	mu          sync.Mutex
	data        map[string][]byte
	invalidated []models.MergeKind
}

func newMemCache() *memCache {
	return &memCache{data: map[string][]byte{}}
}

func (c *memCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.data[key]
	return d, ok
}

func (c *memCache) Set(_ context.Context, key string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = data
}

func (c *memCache) InvalidateKind(_ context.Context, kind models.MergeKind) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = append(c.invalidated, kind)
	for k := range c.data {
		if strings.HasPrefix(k, "dupes:"+string(kind)+":") {
			delete(c.data, k)
		}
	}
}

type memArchiver struct {
	entries []models.MergeAudit
	err     error
}

func (a *memArchiver) Archive(_ context.Context, entry *models.MergeAudit) error {
	if a.err != nil {
		return a.err
	}
	a.entries = append(a.entries, *entry)
	return nil
}

func newDeps(db *memDB) (*MergeDeps, *memCache, *memArchiver) {
	c := newMemCache()
	arch := &memArchiver{}
	return &MergeDeps{
		Stores:   db.stores(),
		Tx:       memTransactor{db},
		Cache:    c,
		Archiver: arch,
		Config: config.MergeConfig{
			DefaultMinSimilarity: 0.7,
			MaxScopeSize:         5000,
			TextSampleLimit:      100,
			ScanWorkers:          2,
		},
		Logger: zap.NewNop(),
	}, c, arch
}

func systemActor() models.Actor {
	return models.Actor{UserID: 1, Username: "root", UserType: models.UserTypeAdmin}
}

func orgAdmin(userType string, org uuid.UUID) models.Actor {
	return models.Actor{UserID: 2, Username: "orgadmin", UserType: userType, OrganizationID: &org}
}

func floatPtr(v float64) *float64 { return &v }
