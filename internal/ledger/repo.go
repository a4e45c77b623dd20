package ledger

import (
	"context"
	"errors"

	"github.com/angelmondragon/posync/pkg/db/models"
	"github.com/angelmondragon/posync/pkg/enums"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var upsertColumns = []string{"portal_id", "status", "response_detail", "last_update"}

// Repository manages persistence for control records.
type Repository interface {
	// Upsert inserts record or updates the row sharing its natural key. When keepPosted is
	// set an existing POSTED row is left untouched.
	Upsert(ctx context.Context, record *models.ControlRecord, keepPosted bool) error
	FindByKey(ctx context.Context, externalID, databaseID string) (*models.ControlRecord, error)
	ListByStatus(ctx context.Context, databaseID string, status enums.ControlStatus, limit int) ([]models.ControlRecord, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Upsert(ctx context.Context, record *models.ControlRecord, keepPosted bool) error {
	conflict := clause.OnConflict{
		Columns:   []clause.Column{{Name: "order_external_id"}, {Name: "database_id"}},
		DoUpdates: clause.AssignmentColumns(upsertColumns),
	}
	if keepPosted {
		conflict.Where = clause.Where{Exprs: []clause.Expression{
			clause.Expr{SQL: "purchase_order_controls.status <> ?", Vars: []any{enums.ControlStatusPosted}},
		}}
	}
	return r.db.WithContext(ctx).Clauses(conflict).Create(record).Error
}

func (r *repository) FindByKey(ctx context.Context, externalID, databaseID string) (*models.ControlRecord, error) {
	var record models.ControlRecord
	err := r.db.WithContext(ctx).
		Where("order_external_id = ? AND database_id = ?", externalID, databaseID).
		Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *repository) ListByStatus(ctx context.Context, databaseID string, status enums.ControlStatus, limit int) ([]models.ControlRecord, error) {
	var records []models.ControlRecord
	query := r.db.WithContext(ctx).
		Where("database_id = ? AND status = ?", databaseID, status).
		Order("last_update DESC").
		Order("order_external_id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
