package threat

import (
	"testing"

	"socsim/internal/model"
)

func TestHeuristicFallbackBySeverity(t *testing.T) {
	s := NewScorer(nil, nil)
	cases := []struct {
		severity  model.Severity
		wantScore float64
		wantFlag  bool
	}{
		{model.SeverityCritical, 0.9, true},
		{model.SeverityHigh, 0.7, true},
		{model.SeverityMedium, 0.2, false},
		{model.SeverityLow, 0.2, false},
	}
	for _, tc := range cases {
		enr := s.Enrich(model.Event{Severity: tc.severity})
		if enr.AnomalyScore != tc.wantScore {
			t.Fatalf("severity %s: score = %v, want %v", tc.severity, enr.AnomalyScore, tc.wantScore)
		}
		if enr.IsAnomaly != tc.wantFlag {
			t.Fatalf("severity %s: is_anomaly = %v, want %v", tc.severity, enr.IsAnomaly, tc.wantFlag)
		}
	}
}

func TestHeuristicFallbackIsDeterministic(t *testing.T) {
	s := NewScorer(nil, nil)
	ev := model.Event{EventType: "SSH_LOGIN_ATTEMPT", Severity: model.SeverityHigh}
	first := s.Enrich(ev)
	for i := 0; i < 10; i++ {
		if got := s.Enrich(ev); got != first {
			t.Fatalf("enrichment not deterministic: %+v vs %+v", got, first)
		}
	}
}

func TestRuleBasedLabels(t *testing.T) {
	cases := []struct {
		eventType string
		want      model.ThreatLabel
	}{
		{"SSH_LOGIN_ATTEMPT", model.LabelBruteForce},
		{"HTTP_SQLI_ATTEMPT", model.LabelSQLInjection},
		{"RANSOMWARE_NOTE_DROPPED", model.LabelRansomware},
		{"FLOOD_DETECTED", model.LabelDDoS},
		{"CLOUD_EXFIL_ATTEMPT", model.LabelDataExfil},
		{"KERBEROASTING", model.LabelLateralMovement},
		{"RDP_BRUTE_FORCE", model.LabelLateralMovement},
		{"C2_BEACON", model.LabelLateralMovement},
		{"MALICIOUS_PHISHING_URL", model.LabelPhishing},
		{"ZERO_DAY_INDICATOR", model.LabelZeroDay},
		{"NORMAL_DNS_QUERY", model.LabelBenign},
		{"", model.LabelBenign},
		{"ssh_login_attempt", model.LabelBruteForce},
	}
	for _, tc := range cases {
		if got := ruleBasedLabel(tc.eventType); got != tc.want {
			t.Fatalf("ruleBasedLabel(%q) = %s, want %s", tc.eventType, got, tc.want)
		}
	}
}

func TestRuleTableOrderWins(t *testing.T) {
	// SSH precedes RDP in the table, so a type containing both resolves to
	// brute_force, not lateral_movement.
	if got := ruleBasedLabel("RDP_OVER_SSH_TUNNEL"); got != model.LabelBruteForce {
		t.Fatalf("got %s, want brute_force (first table hit)", got)
	}
	// EXFIL precedes FLOOD.
	if got := ruleBasedLabel("FLOOD_WITH_EXFIL"); got != model.LabelDataExfil {
		t.Fatalf("got %s, want data_exfil (first table hit)", got)
	}
}

func TestAnomalyModelNormalization(t *testing.T) {
	// Mean-centered vector has distance 0, decision = threshold, score
	// clipped from 1-(threshold+0.5).
	m := &AnomalyModel{
		Mean:      FeatureVector{0.022, 0.5, 0, 0.05, 1},
		Std:       FeatureVector{1, 1, 1, 1, 1},
		Threshold: 0.2,
	}
	s := NewScorer(m, nil)
	enr := s.Enrich(model.Event{
		DestPort:   22,
		SourcePort: 32768, // ~0.5 after scaling
		Protocol:   model.ProtocolTCP,
		RawPayload: "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		Severity:   model.SeverityMedium,
	})
	if enr.AnomalyScore < 0 || enr.AnomalyScore > 1 {
		t.Fatalf("score %v outside unit interval", enr.AnomalyScore)
	}

	// A far outlier drives the decision negative: flagged, score clipped to 1.
	far := s.Enrich(model.Event{
		DestPort:   55000,
		SourcePort: 1,
		Protocol:   model.Protocol("X25"),
		RawPayload: "",
		Severity:   model.SeverityCritical,
	})
	if !far.IsAnomaly {
		t.Fatalf("expected outlier verdict for far vector")
	}
	if far.AnomalyScore != 1 {
		t.Fatalf("far outlier score = %v, want clipped 1", far.AnomalyScore)
	}
}

func TestClassifierOutOfRangeIndexMapsToUnknown(t *testing.T) {
	// 10 centroids but only 9 labels: a vector nearest to centroid 9 must
	// label as unknown.
	centroids := make([]FeatureVector, 10)
	for i := range centroids {
		centroids[i] = FeatureVector{float64(i) * 100, 0, 0, 0, 0}
	}
	s := NewScorer(nil, &ClassifierModel{Centroids: centroids})
	enr := s.Enrich(model.Event{DestPort: 900 * 1000, Severity: model.SeverityLow})
	if enr.ThreatLabel != model.LabelUnknown {
		t.Fatalf("got %s, want unknown for out-of-range class index", enr.ThreatLabel)
	}
}

func TestClassifierIndexMapsToTaxonomy(t *testing.T) {
	centroids := make([]FeatureVector, 9)
	for i := range centroids {
		centroids[i] = FeatureVector{float64(i) * 100, 0, 0, 0, 0}
	}
	s := NewScorer(nil, &ClassifierModel{Centroids: centroids})
	enr := s.Enrich(model.Event{DestPort: 100 * 1000, Severity: model.SeverityLow})
	if enr.ThreatLabel != model.LabelBruteForce {
		t.Fatalf("got %s, want brute_force for class 1", enr.ThreatLabel)
	}
}

func TestRecommendationCoversTaxonomy(t *testing.T) {
	for _, label := range model.ThreatLabels {
		if Recommendation(label) == "" {
			t.Fatalf("no recommendation for %s", label)
		}
	}
	if Recommendation(model.LabelUnknown) == "" {
		t.Fatalf("no recommendation for unknown label")
	}
}
