package domain

import "time"

// ReadinessBucket is a settlement-readiness category assigned to a unit
// from its defect count.
type ReadinessBucket string

const (
	BucketReady     ReadinessBucket = "ready"
	BucketMinorWork ReadinessBucket = "minor_work"
	BucketMajorWork ReadinessBucket = "major_work"
	BucketExtensive ReadinessBucket = "extensive_work"
)

// CountRow is a generic aggregation row: a key (one or two dimensions)
// with its defect count.
type CountRow struct {
	Key       string `json:"key"`
	SecondKey string `json:"second_key,omitempty"`
	Count     int    `json:"count"`
}

// PlannedWork is a defect with a planned completion date, surfaced in
// lookahead tables.
type PlannedWork struct {
	Unit              string    `json:"unit"`
	Room              string    `json:"room"`
	Component         string    `json:"component"`
	Trade             string    `json:"trade"`
	Urgency           Urgency   `json:"urgency"`
	PlannedCompletion time.Time `json:"planned_completion"`
}

// Metrics is the full aggregation computed for one processed inspection.
// It is persisted alongside the inspection as JSON and rendered into
// the Excel and Word reports.
type Metrics struct {
	BuildingName   string `json:"building_name"`
	InspectionDate string `json:"inspection_date"`
	Address        string `json:"address"`
	UnitTypes      string `json:"unit_types"`

	TotalUnits          int     `json:"total_units"`
	TotalInspections    int     `json:"total_inspections"`
	TotalDefects        int     `json:"total_defects"`
	DefectRate          float64 `json:"defect_rate"`
	AvgDefectsPerUnit   float64 `json:"avg_defects_per_unit"`
	UrgentDefects       int     `json:"urgent_defects"`
	HighPriorityDefects int     `json:"high_priority_defects"`

	ReadyUnits     int `json:"ready_units"`
	MinorWorkUnits int `json:"minor_work_units"`
	MajorWorkUnits int `json:"major_work_units"`
	ExtensiveUnits int `json:"extensive_work_units"`

	ReadyPct     float64 `json:"ready_pct"`
	MinorPct     float64 `json:"minor_pct"`
	MajorPct     float64 `json:"major_pct"`
	ExtensivePct float64 `json:"extensive_pct"`

	SummaryTrade     []CountRow `json:"summary_trade"`
	SummaryUnit      []CountRow `json:"summary_unit"`
	SummaryRoom      []CountRow `json:"summary_room"`
	SummaryUnitTrade []CountRow `json:"summary_unit_trade"`
	SummaryRoomComp  []CountRow `json:"summary_room_component"`

	UrgentDefectsTable []InspectionItem `json:"urgent_defects_table,omitempty"`
	PlannedTwoWeeks    []PlannedWork    `json:"planned_work_2weeks,omitempty"`
	PlannedMonth       []PlannedWork    `json:"planned_work_month,omitempty"`
}

// Bucket returns the settlement-readiness bucket for a unit with the
// given defect count.
func Bucket(defects int) ReadinessBucket {
	switch {
	case defects <= 2:
		return BucketReady
	case defects <= 7:
		return BucketMinorWork
	case defects <= 15:
		return BucketMajorWork
	default:
		return BucketExtensive
	}
}
