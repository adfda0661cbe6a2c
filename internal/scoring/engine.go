package scoring

import (
	"math"
	"time"

	"socsim/internal/model"
)

// Engine computes the dual-axis score for a completed session. Compute is a
// pure function of its inputs: identical stats and decisions always produce
// an identical Score.
type Engine struct{}

func NewEngine() *Engine {
	return &Engine{}
}

// Compute merges stream aggregates with the decision ledger into the final
// Score. Malformed or empty decision data never fails: with no decisions the
// average decision time defaults to 30 seconds.
func (e *Engine) Compute(sessionID string, stats model.StreamStats, decisions []model.DecisionRecord, scoredAt time.Time) model.Score {
	totalDecisions := len(decisions)
	if totalDecisions == 0 {
		totalDecisions = 1
	}
	correct := 0
	for _, d := range decisions {
		if d.Correct {
			correct++
		}
	}
	avgDecisionTime := 30.0
	if len(decisions) > 0 {
		sum := 0.0
		for _, d := range decisions {
			sum += d.TimeTakenSec
		}
		avgDecisionTime = sum / float64(totalDecisions)
	}

	detectionAccuracy := math.Min(float64(correct)/float64(totalDecisions)*100, 100)
	// Derived from detection accuracy rather than measured independently; a
	// known approximation kept for score continuity.
	falsePositiveRate := math.Max(0, 100-detectionAccuracy)
	responseSpeed := math.Max(0, 100-avgDecisionTime)
	technicalScore := math.Min(
		detectionAccuracy*0.5+responseSpeed*0.3+math.Min(float64(stats.TotalAnomalies), 10)*2,
		100,
	)

	decisionAccuracy := float64(correct) / float64(totalDecisions) * 100
	stressFactor := 1 + float64(stats.TotalCritical)*0.05
	pressureScore := math.Min(
		math.Min(decisionAccuracy*0.6+math.Max(0, 60-avgDecisionTime)*0.4, 100)*stressFactor,
		100,
	)

	finalScore := technicalScore*0.6 + pressureScore*0.4
	grade := letterGrade(finalScore)

	return model.Score{
		SessionID:          sessionID,
		DetectionAccuracy:  round2(detectionAccuracy),
		FalsePositiveRate:  round2(falsePositiveRate),
		ResponseSpeed:      round2(avgDecisionTime),
		CorrectEscalations: correct,
		TechnicalScore:     round2(technicalScore),
		AvgDecisionTimeSec: round2(avgDecisionTime),
		DecisionAccuracy:   round2(decisionAccuracy),
		StressFactor:       round3(stressFactor),
		PressureScore:      round2(pressureScore),
		FinalScore:         round2(finalScore),
		Grade:              grade,
		Feedback:           feedback(grade, detectionAccuracy, avgDecisionTime),
		ScoredAt:           scoredAt.UTC(),
	}
}

func letterGrade(score float64) string {
	switch {
	case score >= 90:
		return "A"
	case score >= 80:
		return "B"
	case score >= 70:
		return "C"
	case score >= 60:
		return "D"
	default:
		return "F"
	}
}

var gradeFeedback = map[string]string{
	"A": "Outstanding performance. You identified threats quickly and with high accuracy.",
	"B": "Good work. Minor improvements in response time or detection could push you to A.",
	"C": "Satisfactory. Focus on reducing false positives and improving decision speed.",
	"D": "Needs improvement. Review threat classification and response procedures.",
	"F": "Critical gaps detected. Consider reviewing SOC fundamentals before retrying.",
}

func feedback(grade string, detectionAccuracy, avgDecisionTime float64) string {
	base := gradeFeedback[grade]
	if avgDecisionTime > 45 {
		base += " Your average decision time was slow - practice triage workflows."
	}
	if detectionAccuracy < 60 {
		base += " Detection accuracy needs significant improvement."
	}
	return base
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
