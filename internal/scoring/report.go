package scoring

import "socsim/internal/model"

// Recommendations derives study suggestions from the weak areas of a score.
func Recommendations(score model.Score) []string {
	var recs []string
	if score.DetectionAccuracy < 80 {
		recs = append(recs, "Improve threat detection: review attack signatures for common threat types.")
	}
	if score.AvgDecisionTimeSec > 30 {
		recs = append(recs, "Reduce decision time: practise quick triage using the OODA loop framework.")
	}
	if score.FalsePositiveRate > 20 {
		recs = append(recs, "Reduce false positives: refine alert tuning and contextual analysis.")
	}
	if score.PressureScore < 60 {
		recs = append(recs, "Work on decision-making under stress: simulate high-alert scenarios more frequently.")
	}
	if len(recs) == 0 {
		recs = append(recs, "Outstanding performance. Consider pursuing GCIH or CHFI certification.")
	}
	return recs
}
