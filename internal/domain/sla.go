// Package domain – SLA monitoring models.
package domain

import "time"

// Alert thresholds as percentages of the elapsed SLA window. The sweep
// raises at most one alert per (report, threshold); the unique index makes
// re-running the sweep idempotent.
const (
	SlaThresholdWarning  = 75
	SlaThresholdCritical = 90
	SlaThresholdBreach   = 100
)

// SlaAlert is a single threshold crossing for an open report.
type SlaAlert struct {
	ID             string     `json:"id"        gorm:"type:char(36);primaryKey"`
	ReportID       string     `json:"report_id" gorm:"type:char(36);not null;uniqueIndex:ux_sla_alert,priority:1"`
	Threshold      int        `json:"threshold" gorm:"not null;uniqueIndex:ux_sla_alert,priority:2;check:threshold IN (75,90,100)"`
	Severity       string     `json:"severity"  gorm:"type:varchar(16);not null"`
	RaisedAt       time.Time  `json:"raised_at" gorm:"not null;index"`
	AcknowledgedBy *string    `json:"acknowledged_by,omitempty" gorm:"type:varchar(64)"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// TableName returns the database table name for SlaAlert.
func (SlaAlert) TableName() string { return "sla_alerts" }

// Incident statuses.
const (
	IncidentOpen   = "open"
	IncidentClosed = "closed"
)

// SlaIncident is opened for a confirmed SLA breach needing management
// attention; root cause and corrective action are filled in at close.
type SlaIncident struct {
	ID               string     `json:"id"              gorm:"type:char(36);primaryKey"`
	ReportID         string     `json:"report_id"       gorm:"type:char(36);not null;uniqueIndex:ux_sla_incident"`
	BreachDuration   int64      `json:"breach_duration_seconds" gorm:"not null"`
	EscalationLevel  int        `json:"escalation_level" gorm:"not null;default:1"`
	Status           string     `json:"status"          gorm:"type:varchar(16);not null;default:'open';check:status IN ('open','closed')"`
	RootCause        string     `json:"root_cause,omitempty" gorm:"type:text"`
	CorrectiveAction string     `json:"corrective_action,omitempty" gorm:"type:text"`
	OpenedAt         time.Time  `json:"opened_at"       gorm:"not null"`
	ClosedAt         *time.Time `json:"closed_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// TableName returns the database table name for SlaIncident.
func (SlaIncident) TableName() string { return "sla_incidents" }
