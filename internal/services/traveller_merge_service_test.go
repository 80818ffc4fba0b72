package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"travel-backend/internal/apperr"
	"travel-backend/internal/models"
)

type travellerFixture struct {
	db       *memDB
	scopeS   uuid.UUID
	scopeX   uuid.UUID
	a, b, c  uuid.UUID
	x1, x2   uuid.UUID
	bBooking []uuid.UUID
	aBooking uuid.UUID
}

func newTravellerFixture() *travellerFixture {
	db := newMemDB()
	f := &travellerFixture{db: db}
	f.scopeS = db.addOrg("Acme Corp", models.OrgTypeCustomer, nil)
	f.scopeX = db.addOrg("Globex", models.OrgTypeCustomer, nil)

	f.a = db.addTraveller(f.scopeS, "John", "Smith", "E1")
	f.b = db.addTraveller(f.scopeS, "Jon", "Smith", "E1")
	f.c = db.addTraveller(f.scopeS, "Jane", "Doe", "E9")
	f.x1 = db.addTraveller(f.scopeX, "Ann", "Lee", "")
	f.x2 = db.addTraveller(f.scopeX, "Anne", "Lee", "")

	for i := 0; i < 3; i++ {
		f.bBooking = append(f.bBooking, db.addBooking(f.scopeS, f.b, ""))
	}
	f.aBooking = db.addBooking(f.scopeS, f.a, "")
	return f
}

func TestTravellerFindDuplicatesScenario(t *testing.T) {
	f := newTravellerFixture()
	deps, _, _ := newDeps(f.db)
	svc := NewTravellerMergeService(deps)

	res, err := svc.FindDuplicates(context.Background(), systemActor(), DuplicateQuery{
		OrganizationID: &f.scopeS,
		MinSimilarity:  floatPtr(0.7),
	})
	require.NoError(t, err)

	require.Equal(t, 1, res.TotalGroups)
	assert.Equal(t, 0.7, res.MinSimilarity)
	g := res.DuplicateGroups[0]
	assert.Equal(t, f.a, g.Primary.ID)
	assert.Equal(t, 1, g.Primary.BookingCount)
	assert.Equal(t, f.scopeS, g.OrganizationID)
	assert.Equal(t, "Acme Corp", g.OrganizationName)
	require.Len(t, g.Matches, 1)
	assert.Equal(t, f.b, g.Matches[0].ID)
	assert.Equal(t, 0.95, g.Matches[0].SimilarityScore)
	assert.True(t, g.Matches[0].EmployeeIDMatch)
	assert.Equal(t, 3, g.Matches[0].BookingCount)
}

func TestTravellerFindDuplicatesExactKeyBeatsThreshold(t *testing.T) {
	f := newTravellerFixture()
	deps, _, _ := newDeps(f.db)
	svc := NewTravellerMergeService(deps)

	res, err := svc.FindDuplicates(context.Background(), systemActor(), DuplicateQuery{
		OrganizationID: &f.scopeS,
		MinSimilarity:  floatPtr(0.99),
	})
	require.NoError(t, err)
	require.Equal(t, 1, res.TotalGroups)
	require.Len(t, res.DuplicateGroups[0].Matches, 1)
	assert.True(t, res.DuplicateGroups[0].Matches[0].EmployeeIDMatch)
}

func TestTravellerFindDuplicatesScopes(t *testing.T) {
	f := newTravellerFixture()
	deps, _, _ := newDeps(f.db)
	svc := NewTravellerMergeService(deps)
	ctx := context.Background()

	t.Run("system actor without scope sees every organization", func(t *testing.T) {
		res, err := svc.FindDuplicates(ctx, systemActor(), DuplicateQuery{})
		require.NoError(t, err)
		assert.Equal(t, 2, res.TotalGroups)
		assert.Equal(t, 0.7, res.MinSimilarity)
	})

	t.Run("scoped actor is pinned to own organization", func(t *testing.T) {
		res, err := svc.FindDuplicates(ctx, orgAdmin(models.UserTypeCustomerAdmin, f.scopeX), DuplicateQuery{})
		require.NoError(t, err)
		require.Equal(t, 1, res.TotalGroups)
		assert.Equal(t, f.scopeX, res.DuplicateGroups[0].OrganizationID)
	})

	t.Run("scoped actor naming another organization", func(t *testing.T) {
		_, err := svc.FindDuplicates(ctx, orgAdmin(models.UserTypeCustomerAdmin, f.scopeX), DuplicateQuery{OrganizationID: &f.scopeS})
		assert.Equal(t, apperr.KindPermission, apperr.KindOf(err))
	})

	t.Run("threshold out of range", func(t *testing.T) {
		_, err := svc.FindDuplicates(ctx, systemActor(), DuplicateQuery{MinSimilarity: floatPtr(1.5)})
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	})
}

func TestTravellerFindDuplicatesCachedUntilMerge(t *testing.T) {
	f := newTravellerFixture()
	deps, c, _ := newDeps(f.db)
	svc := NewTravellerMergeService(deps)
	ctx := context.Background()
	q := DuplicateQuery{OrganizationID: &f.scopeS}

	first, err := svc.FindDuplicates(ctx, systemActor(), q)
	require.NoError(t, err)
	second, err := svc.FindDuplicates(ctx, systemActor(), q)
	require.NoError(t, err)
	assert.Equal(t, first.TotalGroups, second.TotalGroups)
	assert.Equal(t, first.DuplicateGroups[0].Primary.ID, second.DuplicateGroups[0].Primary.ID)
	assert.Equal(t, 1, f.db.listCalls)

	_, err = svc.Merge(ctx, systemActor(), TravellerMergeRequest{PrimaryID: f.a, MergeIDs: []uuid.UUID{f.b}})
	require.NoError(t, err)
	assert.Contains(t, c.invalidated, models.MergeKindTraveller)

	third, err := svc.FindDuplicates(ctx, systemActor(), q)
	require.NoError(t, err)
	assert.Equal(t, 2, f.db.listCalls)
	assert.Equal(t, 0, third.TotalGroups)
}

func TestTravellerMergeScenario(t *testing.T) {
	f := newTravellerFixture()
	deps, _, arch := newDeps(f.db)
	svc := NewTravellerMergeService(deps)
	before := f.db.travellers[f.b]

	res, err := svc.Merge(context.Background(), systemActor(), TravellerMergeRequest{
		PrimaryID: f.a,
		MergeIDs:  []uuid.UUID{f.b},
	})
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, 1, res.MergedCount)
	assert.Equal(t, 3, res.ReassignedCount)
	assert.Equal(t, f.a.String(), res.PrimarySummary.ID)
	assert.Equal(t, "John Smith", res.PrimarySummary.Name)
	assert.Equal(t, "E1", res.PrimarySummary.EmployeeID)

	_, exists := f.db.travellers[f.b]
	assert.False(t, exists)
	for _, id := range f.bBooking {
		assert.Equal(t, f.a, f.db.bookings[id].TravellerID)
	}

	require.Len(t, f.db.audits, 1)
	entry := f.db.audits[uuid.MustParse(res.MergeAuditID)]
	assert.Equal(t, models.MergeKindTraveller, entry.MergeType)
	assert.Equal(t, models.MergeStatusCompleted, entry.Status)
	assert.Equal(t, f.a.String(), entry.PrimaryObjectID)
	assert.Equal(t, []string{f.b.String()}, entry.MergedRecordIDs)
	assert.Equal(t, before.Snapshot(), entry.Snapshot.Travellers[f.b])
	assert.ElementsMatch(t, f.bBooking, entry.RelationshipUpdates.Bookings)
	assert.ElementsMatch(t, f.bBooking, entry.RelationshipUpdates.BookingsByTraveller[f.b])
	assert.Equal(t, "Merged 1 travellers into John Smith", entry.Summary)
	require.NotNil(t, entry.PerformedByID)
	assert.Equal(t, 1, *entry.PerformedByID)

	require.Len(t, arch.entries, 1)
	assert.Equal(t, entry.ID, arch.entries[0].ID)
}

func TestTravellerMergeAppliesOverrides(t *testing.T) {
	f := newTravellerFixture()
	deps, _, _ := newDeps(f.db)
	svc := NewTravellerMergeService(deps)

	res, err := svc.Merge(context.Background(), systemActor(), TravellerMergeRequest{
		PrimaryID:        f.a,
		MergeIDs:         []uuid.UUID{f.b, f.b},
		ChosenName:       "  Jonathan Smith-Jones ",
		ChosenEmployeeID: "E7",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.MergedCount)

	primary := f.db.travellers[f.a]
	assert.Equal(t, "Jonathan", primary.FirstName)
	assert.Equal(t, "Smith-Jones", primary.LastName)
	assert.Equal(t, "E7", primary.EmployeeID)

	entry := f.db.audits[uuid.MustParse(res.MergeAuditID)]
	assert.Equal(t, "Jonathan Smith-Jones", entry.ChosenName)
	assert.Equal(t, "E7", entry.ChosenEmployeeID)
}

func TestTravellerMergePreconditions(t *testing.T) {
	f := newTravellerFixture()
	unknown := uuid.New()

	tests := []struct {
		name  string
		actor models.Actor
		req   TravellerMergeRequest
		want  apperr.Kind
	}{
		{"missing primary", systemActor(), TravellerMergeRequest{MergeIDs: []uuid.UUID{f.b}}, apperr.KindValidation},
		{"missing merge ids", systemActor(), TravellerMergeRequest{PrimaryID: f.a}, apperr.KindValidation},
		{"primary merged into itself", systemActor(), TravellerMergeRequest{PrimaryID: f.a, MergeIDs: []uuid.UUID{f.a}}, apperr.KindValidation},
		{"unknown primary", systemActor(), TravellerMergeRequest{PrimaryID: unknown, MergeIDs: []uuid.UUID{f.b}}, apperr.KindNotFound},
		{"unknown primary is reported before a bad merge id", systemActor(), TravellerMergeRequest{PrimaryID: unknown, MergeIDs: []uuid.UUID{uuid.New()}}, apperr.KindNotFound},
		{"actor outside primary scope", orgAdmin(models.UserTypeCustomerAdmin, f.scopeX), TravellerMergeRequest{PrimaryID: f.a, MergeIDs: []uuid.UUID{f.b}}, apperr.KindPermission},
		{"permission is checked before scope mismatch", orgAdmin(models.UserTypeCustomerAdmin, f.scopeX), TravellerMergeRequest{PrimaryID: f.a, MergeIDs: []uuid.UUID{f.x1}}, apperr.KindPermission},
		{"unknown merge id", systemActor(), TravellerMergeRequest{PrimaryID: f.a, MergeIDs: []uuid.UUID{f.b, uuid.New()}}, apperr.KindValidation},
		{"cross-scope merge", systemActor(), TravellerMergeRequest{PrimaryID: f.a, MergeIDs: []uuid.UUID{f.b, f.x1}}, apperr.KindValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps, _, arch := newDeps(f.db)
			svc := NewTravellerMergeService(deps)
			travellers := len(f.db.travellers)

			_, err := svc.Merge(context.Background(), tt.actor, tt.req)
			require.Error(t, err)
			assert.Equal(t, tt.want, apperr.KindOf(err))

			assert.Len(t, f.db.travellers, travellers)
			assert.Empty(t, f.db.audits)
			assert.Empty(t, arch.entries)
			for _, id := range f.bBooking {
				assert.Equal(t, f.b, f.db.bookings[id].TravellerID)
			}
		})
	}
}

func TestTravellerMergeRollsBackOnFailure(t *testing.T) {
	f := newTravellerFixture()
	f.db.failAuditCreate = true
	deps, _, _ := newDeps(f.db)
	svc := NewTravellerMergeService(deps)

	_, err := svc.Merge(context.Background(), systemActor(), TravellerMergeRequest{PrimaryID: f.a, MergeIDs: []uuid.UUID{f.b}})
	require.Error(t, err)
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))

	_, exists := f.db.travellers[f.b]
	assert.True(t, exists)
	for _, id := range f.bBooking {
		assert.Equal(t, f.b, f.db.bookings[id].TravellerID)
	}
	assert.Empty(t, f.db.audits)
}

func TestTravellerMergeUndoRoundTrip(t *testing.T) {
	f := newTravellerFixture()
	deps, c, arch := newDeps(f.db)
	svc := NewTravellerMergeService(deps)
	ctx := context.Background()
	before := f.db.travellers[f.b]

	res, err := svc.Merge(ctx, systemActor(), TravellerMergeRequest{PrimaryID: f.a, MergeIDs: []uuid.UUID{f.b}})
	require.NoError(t, err)
	entryID := uuid.MustParse(res.MergeAuditID)

	undo, err := svc.Undo(ctx, systemActor(), entryID, UndoOptions{})
	require.NoError(t, err)
	assert.True(t, undo.Success)
	assert.Equal(t, 1, undo.RestoredCount)
	assert.Equal(t, 0, undo.RelinkedCount)
	assert.Equal(t, "Merge undone successfully. 1 travellers restored.", undo.Message)

	restored, exists := f.db.travellers[f.b]
	require.True(t, exists)
	assert.Equal(t, before.Snapshot(), restored.Snapshot())

	// Bookings stay with the survivor unless restoration is requested.
	for _, id := range f.bBooking {
		assert.Equal(t, f.a, f.db.bookings[id].TravellerID)
	}

	entry := f.db.audits[entryID]
	assert.Equal(t, models.MergeStatusUndone, entry.Status)
	require.NotNil(t, entry.UndoneAt)
	require.NotNil(t, entry.UndoneByID)
	assert.Equal(t, 1, *entry.UndoneByID)

	assert.Len(t, c.invalidated, 2)
	require.Len(t, arch.entries, 2)
	assert.Equal(t, models.MergeStatusUndone, arch.entries[1].Status)
}

func TestTravellerUndoRestoresRelationshipsOnRequest(t *testing.T) {
	f := newTravellerFixture()
	deps, _, _ := newDeps(f.db)
	svc := NewTravellerMergeService(deps)
	ctx := context.Background()

	res, err := svc.Merge(ctx, systemActor(), TravellerMergeRequest{PrimaryID: f.a, MergeIDs: []uuid.UUID{f.b}})
	require.NoError(t, err)

	// A booking moved away from the survivor after the merge is left alone.
	moved := f.db.bookings[f.bBooking[0]]
	moved.TravellerID = f.c
	f.db.bookings[moved.ID] = moved

	undo, err := svc.Undo(ctx, systemActor(), uuid.MustParse(res.MergeAuditID), UndoOptions{RestoreRelationships: true})
	require.NoError(t, err)
	assert.Equal(t, 2, undo.RelinkedCount)

	assert.Equal(t, f.c, f.db.bookings[f.bBooking[0]].TravellerID)
	assert.Equal(t, f.b, f.db.bookings[f.bBooking[1]].TravellerID)
	assert.Equal(t, f.b, f.db.bookings[f.bBooking[2]].TravellerID)
	assert.Equal(t, f.a, f.db.bookings[f.aBooking].TravellerID)
}

func TestTravellerUndoFailures(t *testing.T) {
	f := newTravellerFixture()
	deps, _, _ := newDeps(f.db)
	svc := NewTravellerMergeService(deps)
	consultants := NewConsultantMergeService(deps)
	ctx := context.Background()

	res, err := svc.Merge(ctx, systemActor(), TravellerMergeRequest{PrimaryID: f.a, MergeIDs: []uuid.UUID{f.b}})
	require.NoError(t, err)
	entryID := uuid.MustParse(res.MergeAuditID)

	_, err = svc.Undo(ctx, systemActor(), uuid.New(), UndoOptions{})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	_, err = svc.Undo(ctx, orgAdmin(models.UserTypeCustomerAdmin, f.scopeX), entryID, UndoOptions{})
	assert.Equal(t, apperr.KindPermission, apperr.KindOf(err))

	_, err = consultants.Undo(ctx, systemActor(), entryID, UndoOptions{})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = svc.Undo(ctx, orgAdmin(models.UserTypeCustomerAdmin, f.scopeS), entryID, UndoOptions{})
	require.NoError(t, err)

	_, err = svc.Undo(ctx, systemActor(), entryID, UndoOptions{})
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "already been undone")
}

func TestTravellerUndoConflictsWithExistingRecord(t *testing.T) {
	f := newTravellerFixture()
	deps, _, _ := newDeps(f.db)
	svc := NewTravellerMergeService(deps)
	ctx := context.Background()
	before := f.db.travellers[f.b]

	res, err := svc.Merge(ctx, systemActor(), TravellerMergeRequest{PrimaryID: f.a, MergeIDs: []uuid.UUID{f.b}})
	require.NoError(t, err)

	f.db.travellers[f.b] = before

	_, err = svc.Undo(ctx, systemActor(), uuid.MustParse(res.MergeAuditID), UndoOptions{})
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	assert.Equal(t, models.MergeStatusCompleted, f.db.audits[uuid.MustParse(res.MergeAuditID)].Status)
}
