package models

import (
	"strings"
	"time"
)

// ScanTrigger tells what started a scan.
type ScanTrigger string

const (
	TriggerManual ScanTrigger = "manual"
	TriggerAuto   ScanTrigger = "auto"
)

// DateLayout is the partition key format of ScanRecord.Date.
const DateLayout = "2006-01-02"

// EncodedImage is a captured still image.
type EncodedImage struct {
	MimeType string `json:"mime_type"`
	Data     []byte `json:"data"` // base64 in JSON
}

// AnalysisNote is one recognized free-form summary line of the model output.
type AnalysisNote struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// AnalysisResult is the harvest-readiness judgment parsed from the model output.
// Fields the model did not return stay empty.
type AnalysisResult struct {
	GrowthStage  string         `json:"growth_stage,omitempty"`
	HarvestReady string         `json:"harvest_ready,omitempty"`
	Explanation  string         `json:"explanation,omitempty"`
	Notes        []AnalysisNote `json:"notes,omitempty"`
	Raw          string         `json:"raw,omitempty"`
}

// IsHarvestReady interprets HarvestReady. ok is false when the value is missing
// or not recognizable as yes/no.
func (a AnalysisResult) IsHarvestReady() (ready bool, ok bool) {
	v := strings.ToLower(strings.TrimSpace(a.HarvestReady))
	v = strings.TrimRight(v, ".!")
	switch {
	case v == "":
		return false, false
	case v == "yes" || v == "true" || v == "ready" || strings.HasPrefix(v, "yes"):
		return true, true
	case v == "no" || v == "false" || v == "not ready" || strings.HasPrefix(v, "no"):
		return false, true
	}
	return false, false
}

// ScanRecord is one completed scan. Records are never mutated after creation.
type ScanRecord struct {
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Date      string          `json:"date"` // YYYY-MM-DD
	Trigger   ScanTrigger     `json:"trigger"`
	Reading   Reading         `json:"reading"`
	Image     *EncodedImage   `json:"image,omitempty"`
	Analysis  *AnalysisResult `json:"analysis,omitempty"`
}
