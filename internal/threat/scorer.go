package threat

import (
	"math"
	"strings"

	"socsim/internal/model"
)

// labelRules is the fallback keyword table. Order matters: the first keyword
// contained in the upper-cased event type wins.
var labelRules = []struct {
	keyword string
	label   model.ThreatLabel
}{
	{"SSH", model.LabelBruteForce},
	{"SQLI", model.LabelSQLInjection},
	{"RANSOMWARE", model.LabelRansomware},
	{"EXFIL", model.LabelDataExfil},
	{"FLOOD", model.LabelDDoS},
	{"KERBERO", model.LabelLateralMovement},
	{"PHISH", model.LabelPhishing},
	{"ZERO_DAY", model.LabelZeroDay},
	{"C2_BEACON", model.LabelLateralMovement},
	{"RDP", model.LabelLateralMovement},
}

// Scorer enriches events with an anomaly score and a threat label. Model
// handles are optional; a nil handle selects the corresponding deterministic
// fallback. The scorer is stateless and safe for concurrent use.
type Scorer struct {
	anomaly    *AnomalyModel
	classifier *ClassifierModel
}

func NewScorer(anomaly *AnomalyModel, classifier *ClassifierModel) *Scorer {
	return &Scorer{anomaly: anomaly, classifier: classifier}
}

func (s *Scorer) Enrich(ev model.Event) model.Enrichment {
	fv := ExtractFeatures(ev)

	var score float64
	var isAnomaly bool
	if s.anomaly != nil {
		raw, outlier := s.anomaly.Decision(fv)
		score = clamp01(1 - (raw + 0.5))
		isAnomaly = outlier
	} else {
		switch ev.Severity {
		case model.SeverityCritical:
			score, isAnomaly = 0.9, true
		case model.SeverityHigh:
			score, isAnomaly = 0.7, true
		default:
			score, isAnomaly = 0.2, false
		}
	}

	var label model.ThreatLabel
	if s.classifier != nil {
		idx := s.classifier.Predict(fv)
		if idx >= 0 && idx < len(model.ThreatLabels) {
			label = model.ThreatLabels[idx]
		} else {
			label = model.LabelUnknown
		}
	} else {
		label = ruleBasedLabel(ev.EventType)
	}

	return model.Enrichment{
		AnomalyScore: round4(score),
		IsAnomaly:    isAnomaly,
		ThreatLabel:  label,
	}
}

func ruleBasedLabel(eventType string) model.ThreatLabel {
	upper := strings.ToUpper(eventType)
	for _, rule := range labelRules {
		if strings.Contains(upper, rule.keyword) {
			return rule.label
		}
	}
	return model.LabelBenign
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

var recommendations = map[model.ThreatLabel]string{
	model.LabelBruteForce:      "Block source IP, enable account lockout policy.",
	model.LabelSQLInjection:    "Sanitise inputs, review WAF rules, patch vulnerable endpoints.",
	model.LabelRansomware:      "Isolate affected host immediately, disable SMB shares.",
	model.LabelDDoS:            "Enable rate limiting, contact upstream ISP for traffic scrubbing.",
	model.LabelLateralMovement: "Reset compromised credentials, segment network.",
	model.LabelDataExfil:       "Block outbound traffic to unknown IPs, audit DLP policies.",
	model.LabelPhishing:        "Quarantine email, reset credentials, user awareness training.",
	model.LabelZeroDay:         "Isolate system, capture memory dump for analysis, escalate.",
	model.LabelBenign:          "No action required - normal traffic pattern.",
}

// Recommendation returns the analyst playbook entry for a threat label.
func Recommendation(label model.ThreatLabel) string {
	if rec, ok := recommendations[label]; ok {
		return rec
	}
	return "Investigate and escalate if uncertain."
}
