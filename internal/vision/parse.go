package vision

import (
	"regexp"
	"strings"

	"harvest_monitor/internal/models"
)

// Keys recognized in the model output.
const (
	KeyGrowthStage  = "GROWTH_STAGE"
	KeyHarvestReady = "HARVEST_READY"
	KeyExplanation  = "EXPLANATION"
)

// summaryKeys are free-form sensor commentary lines kept as notes.
var summaryKeys = map[string]bool{
	"NITROGEN":       true,
	"PHOSPHORUS":     true,
	"POTASSIUM":      true,
	"NPK":            true,
	"PH":             true,
	"MOISTURE":       true,
	"SOIL_MOISTURE":  true,
	"HUMIDITY":       true,
	"TEMPERATURE":    true,
	"SOIL_SUMMARY":   true,
	"SENSOR_SUMMARY": true,
}

// line is one recognized "KEY: value" line.
type line struct {
	key   string
	value string
}

// keyedLine matches any "KEY: value" line, recognized or not.
var keyedLine = regexp.MustCompile(`^[A-Za-z_ *\-]+:`)

// ParseAnalysis folds the recognized lines of text into a result. Unknown lines
// are ignored. Plain text lines right after EXPLANATION continue it until a
// blank line or another keyed line.
func ParseAnalysis(text string) models.AnalysisResult {
	res := models.AnalysisResult{Raw: strings.TrimSpace(text)}

	inExplanation := false
	for _, rawLine := range strings.Split(text, "\n") {
		l, ok := parseLine(rawLine)
		if !ok {
			if inExplanation {
				cont := cleanValue(rawLine)
				if cont == "" || keyedLine.MatchString(stripDecoration(rawLine)) {
					inExplanation = false
					continue
				}
				res.Explanation = strings.TrimSpace(res.Explanation + " " + cont)
			}
			continue
		}
		inExplanation = false

		switch {
		case l.key == KeyGrowthStage:
			res.GrowthStage = l.value
		case l.key == KeyHarvestReady:
			res.HarvestReady = l.value
		case l.key == KeyExplanation:
			res.Explanation = l.value
			inExplanation = true
		case summaryKeys[l.key]:
			res.Notes = append(res.Notes, models.AnalysisNote{Key: l.key, Value: l.value})
		}
	}
	return res
}

// parseLine recognizes "KEY: value" with optional bullets, bold markers or
// spaces in the key ("Growth stage: ..."). Lines with unknown keys are not ok.
func parseLine(raw string) (line, bool) {
	s := stripDecoration(raw)
	keyPart, value, found := strings.Cut(s, ":")
	if !found {
		return line{}, false
	}
	key := strings.Trim(keyPart, "*_` \t")
	key = strings.ToUpper(strings.Join(strings.Fields(strings.ReplaceAll(key, "-", " ")), "_"))

	switch {
	case key == KeyGrowthStage, key == KeyHarvestReady, key == KeyExplanation, summaryKeys[key]:
	default:
		return line{}, false
	}
	return line{key: key, value: cleanValue(value)}, true
}

// stripDecoration drops leading bullets, headings and bold markers.
func stripDecoration(raw string) string {
	s := strings.TrimLeft(strings.TrimSpace(raw), "-*•# \t")
	return strings.TrimLeft(s, "*_`")
}

func cleanValue(s string) string {
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(s), "*_`"))
}
