package models

import (
	"time"

	"github.com/angelmondragon/posync/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ControlRecord is the idempotency ledger entry for one order of one ERP database.
type ControlRecord struct {
	ID              uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrderExternalID string              `gorm:"column:order_external_id;size:100;not null;uniqueIndex:ux_po_controls_order_db,priority:1"`
	DatabaseID      string              `gorm:"column:database_id;size:100;not null;uniqueIndex:ux_po_controls_order_db,priority:2;index:ix_po_controls_db_status,priority:1"`
	PortalID        *string             `gorm:"column:portal_id;size:255"`
	Status          enums.ControlStatus `gorm:"column:status;size:20;not null;index:ix_po_controls_db_status,priority:2"`
	ResponseDetail  *string             `gorm:"column:response_detail;type:text"`
	LastUpdate      time.Time           `gorm:"column:last_update;not null"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
}

func (ControlRecord) TableName() string {
	return "purchase_order_controls"
}

// BeforeCreate assigns the primary key in Go so the model works on drivers without uuid defaults.
func (r *ControlRecord) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
