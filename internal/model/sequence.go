package model

import "time"

// DocumentSequence is the counter row behind gap-free document numbers, one per prefix and year.
type DocumentSequence struct {
	Prefix    string    `gorm:"type:varchar(20);primaryKey" json:"prefix"`
	Year      int       `gorm:"primaryKey;autoIncrement:false" json:"year"`
	LastValue int64     `gorm:"not null;default:0" json:"last_value"`
	UpdatedAt time.Time `json:"updated_at"`
}
