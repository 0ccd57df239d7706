// Package events contains event contract definitions for WebSocket
// communication between the SitePulse server and its clients.
package events

import "time"

// Event types pushed over the WebSocket channel.
const (
	TypeJobProgress   = "job:progress"
	TypeJobComplete   = "job:complete"
	TypeJobFailed     = "job:failed"
	TypeDefectUpdate  = "defect:update"
	TypeReportReady   = "report:ready"
	TypeDataRefresh   = "data:refresh"
)

// Envelope wraps every pushed event.
type Envelope struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

// JobProgress reports processing-pipeline progress for an upload job.
type JobProgress struct {
	JobID    string `json:"job_id"`
	Stage    string `json:"stage"`
	Progress int    `json:"progress"`
	Message  string `json:"message,omitempty"`
}

// DefectUpdate announces a defect workflow change.
type DefectUpdate struct {
	DefectID     int64  `json:"defect_id"`
	InspectionID string `json:"inspection_id"`
	Status       string `json:"status"`
	AssignedTo   string `json:"assigned_to,omitempty"`
	ChangedBy    string `json:"changed_by"`
}

// ReportReady announces a generated report artifact.
type ReportReady struct {
	InspectionID string `json:"inspection_id"`
	Format       string `json:"format"`
	Filename     string `json:"filename"`
}
