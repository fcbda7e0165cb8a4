package models

import "time"

// Notification is the display form of one ScanRecord.
type Notification struct {
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Date      string          `json:"date"`
	Trigger   ScanTrigger     `json:"trigger"`
	Message   string          `json:"message"`
	Reading   Reading         `json:"reading"`
	HasImage  bool            `json:"has_image"`
	Analysis  *AnalysisResult `json:"analysis,omitempty"`
}

// NotificationView is the history of one calendar date, newest first.
type NotificationView struct {
	Date  string         `json:"date"`
	Dates []string       `json:"dates"`
	Items []Notification `json:"items"`
}
