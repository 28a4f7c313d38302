package model

import (
	"strings"
	"time"
)

type Report struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	TargetType  string    `gorm:"type:varchar(20);not null;index:idx_report_target,unique" json:"targetType"`
	TargetID    int64     `gorm:"not null;index:idx_report_target,unique" json:"targetId"`
	Reporter    string    `gorm:"type:varchar(255);not null;index:idx_report_target,unique" json:"reporter"`
	Reasons     string    `gorm:"type:text;not null" json:"-"` // comma separated
	Description string    `gorm:"type:text" json:"description,omitempty"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// TableName specifies the table name
func (Report) TableName() string {
	return "reports"
}

// GetReasons returns Reasons as a slice of strings
func (r *Report) GetReasons() []string {
	if r.Reasons == "" {
		return []string{}
	}
	return strings.Split(r.Reasons, ",")
}

// SetReasons stores reasons as a comma separated list
func (r *Report) SetReasons(reasons []string) {
	r.Reasons = strings.Join(reasons, ",")
}

// ReportInput is the body of POST /api/reports/create.
type ReportInput struct {
	TargetType  string   `json:"targetType" validate:"required,oneof=POST COMMENT" binding:"required,oneof=POST COMMENT"`
	TargetID    int64    `json:"targetId" validate:"required,gt=0" binding:"required,gt=0"`
	Reasons     []string `json:"reasons" validate:"required,min=1,dive,required" binding:"required,min=1,dive,required"`
	Description string   `json:"description"`
}
