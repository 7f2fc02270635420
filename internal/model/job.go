package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const JobMonthlyInvoices = "monthly-commission-invoices"

// Batch triggers
const (
	TriggerSchedule = "schedule"
	TriggerManual   = "manual"
	TriggerCLI      = "cli"
)

// JobLock is a lease row guarding single-writer jobs across processes
type JobLock struct {
	Name        string    `gorm:"type:varchar(60);primaryKey" json:"name"`
	Holder      string    `gorm:"type:varchar(100)" json:"holder"`
	LockedUntil time.Time `gorm:"not null" json:"locked_until"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// BatchRun records one execution of the monthly invoice batch
type BatchRun struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	PeriodStart time.Time      `gorm:"not null;index" json:"period_start"`
	Trigger     string         `gorm:"type:varchar(20);not null" json:"trigger"`
	TotalPayees int            `json:"total_payees"`
	Succeeded   int            `json:"succeeded"`
	Skipped     int            `json:"skipped"`
	Failed      int            `json:"failed"`
	Summary     datatypes.JSON `json:"summary"`
	StartedAt   time.Time      `json:"started_at"`
	FinishedAt  *time.Time     `json:"finished_at"`
}

func (b *BatchRun) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}
