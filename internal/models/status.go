package models

import "time"

// Status event types. They are transient and never persisted.
const (
	StatusScanStarted      = "scan_started"
	StatusScanCompleted    = "scan_completed"
	StatusScanFailed       = "scan_failed"
	StatusScanRejected     = "scan_rejected"
	StatusAnalysisFailed   = "analysis_failed"
	StatusCaptureCompleted = "capture_completed"
	StatusCaptureFailed    = "capture_failed"
)

// StatusEvent reports the outcome of a scan step to the dashboard.
type StatusEvent struct {
	Type       string      `json:"type"`
	Trigger    ScanTrigger `json:"trigger,omitempty"`
	ScanID     string      `json:"scan_id,omitempty"`
	Message    string      `json:"message"`
	Error      string      `json:"error,omitempty"`
	OccurredAt time.Time   `json:"occurred_at"`
}
