package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"travel-backend/internal/models"
	"travel-backend/internal/repositories"
)

// TravellerStore is the traveller access the merge engine needs.
type TravellerStore interface {
	ListActive(ctx context.Context, orgIDs []uuid.UUID) ([]*models.Traveller, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Traveller, error)
	GetManyForUpdate(ctx context.Context, ids []uuid.UUID) ([]*models.Traveller, error)
	Update(ctx context.Context, t *models.Traveller) error
	Insert(ctx context.Context, t *models.Traveller) error
	DeleteMany(ctx context.Context, ids []uuid.UUID) (int64, error)
}

// BookingStore covers both ways bookings depend on mergeable data: the
// traveller they point at and their free-text consultant name.
type BookingStore interface {
	LockIDsByTraveller(ctx context.Context, travellerID uuid.UUID) ([]uuid.UUID, error)
	Reassign(ctx context.Context, ids []uuid.UUID, from, to uuid.UUID) (int64, error)
	DistinctConsultantTexts(ctx context.Context, orgIDs []uuid.UUID) ([]models.ConsultantText, error)
	LockIDsByConsultantText(ctx context.Context, orgIDs []uuid.UUID, text string) ([]uuid.UUID, error)
	ReplaceConsultantText(ctx context.Context, ids []uuid.UUID, from, to string) (int64, error)
}

// MergeAuditStore is the ledger: append, read, and flip to UNDONE. Nothing else.
type MergeAuditStore interface {
	Create(ctx context.Context, a *models.MergeAudit) error
	Get(ctx context.Context, id uuid.UUID) (*models.MergeAudit, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*models.MergeAudit, error)
	List(ctx context.Context, f models.MergeAuditFilter) ([]*models.MergeAudit, error)
	MarkUndone(ctx context.Context, id uuid.UUID, undoneBy *int, at time.Time) (bool, error)
}

type OrganizationStore interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Organization, error)
	ListCustomerIDs(ctx context.Context, agentID uuid.UUID) ([]uuid.UUID, error)
}

// Stores bundles the stores bound to one connection or transaction.
type Stores struct {
	Travellers    TravellerStore
	Bookings      BookingStore
	Audits        MergeAuditStore
	Organizations OrganizationStore
}

// NewStores binds the pgx repositories to db, a pool or a transaction.
func NewStores(db repositories.DBTX) Stores {
	return Stores{
		Travellers:    repositories.NewTravellerRepository(db),
		Bookings:      repositories.NewBookingRepository(db),
		Audits:        repositories.NewMergeAuditRepository(db),
		Organizations: repositories.NewOrganizationRepository(db),
	}
}

// Transactor runs fn against stores bound to a single transaction. fn's
// writes commit together when it returns nil and are discarded otherwise.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(Stores) error) error
}

// PgTransactor runs units of work in REPEATABLE READ pgx transactions.
type PgTransactor struct {
	DB repositories.TxBeginner
}

func NewPgTransactor(db repositories.TxBeginner) *PgTransactor {
	return &PgTransactor{DB: db}
}

func (t *PgTransactor) WithinTx(ctx context.Context, fn func(Stores) error) error {
	return repositories.RunInTx(ctx, t.DB, func(tx pgx.Tx) error {
		return fn(NewStores(tx))
	})
}
