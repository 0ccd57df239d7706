package domain

import (
	"time"
)

// StatusClass is the classification of a single inspection point.
type StatusClass string

const (
	StatusOK    StatusClass = "OK"
	StatusNotOK StatusClass = "Not OK"
	StatusBlank StatusClass = "Blank"
)

// Urgency ranks how quickly a defect needs attention.
type Urgency string

const (
	UrgencyNormal Urgency = "Normal"
	UrgencyHigh   Urgency = "High Priority"
	UrgencyUrgent Urgency = "Urgent"
)

// DefectStatus tracks a defect through the rectification workflow.
type DefectStatus string

const (
	DefectOpen       DefectStatus = "open"
	DefectAssigned   DefectStatus = "assigned"
	DefectInProgress DefectStatus = "in_progress"
	DefectCompleted  DefectStatus = "completed"
	DefectApproved   DefectStatus = "approved"
	DefectRejected   DefectStatus = "rejected"
)

// InspectionItem is one melted inspection point: a (unit, room, component)
// cell from the wide iAuditor export, classified and trade-mapped.
type InspectionItem struct {
	ID                int64       `json:"id,omitempty" db:"id"`
	InspectionID      string      `json:"inspection_id,omitempty" db:"inspection_id"`
	Unit              string      `json:"unit" db:"unit_number" validate:"required"`
	UnitType          string      `json:"unit_type" db:"unit_type"`
	Room              string      `json:"room" db:"room" validate:"required"`
	Component         string      `json:"component" db:"component" validate:"required"`
	Trade             string      `json:"trade" db:"trade"`
	StatusClass       StatusClass `json:"status_class" db:"status_class"`
	Urgency           Urgency     `json:"urgency" db:"urgency"`
	PlannedCompletion *time.Time  `json:"planned_completion,omitempty" db:"planned_completion"`
}

// IsDefect reports whether the item counts toward defect metrics.
func (i InspectionItem) IsDefect() bool {
	return i.StatusClass == StatusNotOK
}

// Defect is an InspectionItem that entered the rectification workflow.
type Defect struct {
	ID                int64        `json:"id" db:"id"`
	InspectionID      string       `json:"inspection_id" db:"inspection_id"`
	Unit              string       `json:"unit" db:"unit_number"`
	UnitType          string       `json:"unit_type" db:"unit_type"`
	Room              string       `json:"room" db:"room"`
	Component         string       `json:"component" db:"component"`
	Trade             string       `json:"trade" db:"trade"`
	Urgency           Urgency      `json:"urgency" db:"urgency"`
	PlannedCompletion *time.Time   `json:"planned_completion,omitempty" db:"planned_completion"`
	Status            DefectStatus `json:"status" db:"status"`
	AssignedTo        string       `json:"assigned_to,omitempty" db:"assigned_to"`
	CreatedAt         time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at" db:"updated_at"`
}

// defectTransitions enumerates the legal workflow edges.
var defectTransitions = map[DefectStatus][]DefectStatus{
	DefectOpen:       {DefectAssigned, DefectInProgress},
	DefectAssigned:   {DefectInProgress, DefectOpen},
	DefectInProgress: {DefectCompleted, DefectOpen},
	DefectCompleted:  {DefectApproved, DefectRejected},
	DefectRejected:   {DefectInProgress, DefectAssigned},
}

// CanTransition reports whether a defect may move from its current status
// to the target status.
func (d Defect) CanTransition(to DefectStatus) bool {
	for _, next := range defectTransitions[d.Status] {
		if next == to {
			return true
		}
	}
	return false
}

// Inspection is one processed upload batch for a building.
type Inspection struct {
	ID             string     `json:"id" db:"id"`
	BuildingID     string     `json:"building_id,omitempty" db:"building_id"`
	BuildingName   string     `json:"building_name" db:"building_name" validate:"required"`
	Address        string     `json:"address" db:"address"`
	InspectionDate string     `json:"inspection_date" db:"inspection_date"`
	UploadedBy     string     `json:"uploaded_by" db:"uploaded_by"`
	ProcessedAt    time.Time  `json:"processed_at" db:"processed_at"`
	IsActive       bool       `json:"is_active" db:"is_active"`
	Metrics        *Metrics   `json:"metrics,omitempty"`
	SourceFile     string     `json:"source_file,omitempty" db:"source_file"`
}

// TradeMapping associates a (Room, Component) pair with the responsible trade.
type TradeMapping struct {
	ID        int64  `json:"id,omitempty" db:"id"`
	Room      string `json:"room" db:"room" validate:"required"`
	Component string `json:"component" db:"component" validate:"required"`
	Trade     string `json:"trade" db:"trade" validate:"required"`
	CreatedBy string `json:"created_by,omitempty" db:"created_by"`
	IsActive  bool   `json:"is_active" db:"is_active"`
}
