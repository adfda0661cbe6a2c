package model

import (
	"strings"
	"time"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

func ParseSeverity(s string) (Severity, bool) {
	switch Severity(strings.ToLower(s)) {
	case SeverityLow:
		return SeverityLow, true
	case SeverityMedium:
		return SeverityMedium, true
	case SeverityHigh:
		return SeverityHigh, true
	case SeverityCritical:
		return SeverityCritical, true
	}
	return SeverityLow, false
}

type Protocol string

const (
	ProtocolTCP  Protocol = "TCP"
	ProtocolUDP  Protocol = "UDP"
	ProtocolICMP Protocol = "ICMP"
	ProtocolSMTP Protocol = "SMTP"
	ProtocolNone Protocol = "N/A"
)

type Scenario string

const (
	ScenarioBruteForce       Scenario = "brute_force"
	ScenarioSQLInjection     Scenario = "sql_injection"
	ScenarioRansomware       Scenario = "ransomware"
	ScenarioDDoS             Scenario = "ddos"
	ScenarioLateralMovement  Scenario = "lateral_movement"
	ScenarioDataExfiltration Scenario = "data_exfiltration"
	ScenarioPhishing         Scenario = "phishing"
	ScenarioZeroDay          Scenario = "zero_day"
)

func ParseScenario(s string) (Scenario, bool) {
	sc := Scenario(strings.ToLower(s))
	switch sc {
	case ScenarioBruteForce, ScenarioSQLInjection, ScenarioRansomware,
		ScenarioDDoS, ScenarioLateralMovement, ScenarioDataExfiltration,
		ScenarioPhishing, ScenarioZeroDay:
		return sc, true
	}
	return ScenarioBruteForce, false
}

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

func ParseDifficulty(s string) (Difficulty, bool) {
	d := Difficulty(strings.ToLower(s))
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return d, true
	}
	return DifficultyMedium, false
}

type ThreatLabel string

const (
	LabelBenign          ThreatLabel = "benign"
	LabelBruteForce      ThreatLabel = "brute_force"
	LabelSQLInjection    ThreatLabel = "sql_injection"
	LabelRansomware      ThreatLabel = "ransomware"
	LabelDDoS            ThreatLabel = "ddos"
	LabelLateralMovement ThreatLabel = "lateral_movement"
	LabelDataExfil       ThreatLabel = "data_exfil"
	LabelPhishing        ThreatLabel = "phishing"
	LabelZeroDay         ThreatLabel = "zero_day"
	LabelUnknown         ThreatLabel = "unknown"
)

// ThreatLabels is the classifier output taxonomy, indexed by class number.
var ThreatLabels = []ThreatLabel{
	LabelBenign,
	LabelBruteForce,
	LabelSQLInjection,
	LabelRansomware,
	LabelDDoS,
	LabelLateralMovement,
	LabelDataExfil,
	LabelPhishing,
	LabelZeroDay,
}

type SessionStatus string

const (
	StatusRunning   SessionStatus = "running"
	StatusCompleted SessionStatus = "completed"
)

// Event is one simulated log line. The generator fills the raw fields, the
// threat scorer fills the enrichment fields, and the record is immutable once
// persisted.
type Event struct {
	ID           string      `json:"id"`
	SessionID    string      `json:"session_id"`
	SourceIP     string      `json:"source_ip"`
	DestIP       string      `json:"dest_ip"`
	SourcePort   int         `json:"source_port"`
	DestPort     int         `json:"dest_port"`
	Protocol     Protocol    `json:"protocol"`
	EventType    string      `json:"event_type"`
	RawPayload   string      `json:"raw_payload"`
	Severity     Severity    `json:"severity"`
	Timestamp    time.Time   `json:"timestamp"`
	AnomalyScore float64     `json:"anomaly_score"`
	IsAnomaly    bool        `json:"is_anomaly"`
	ThreatLabel  ThreatLabel `json:"threat_label"`
}

// Enrichment is the threat scorer output for a single event.
type Enrichment struct {
	AnomalyScore float64     `json:"anomaly_score"`
	IsAnomaly    bool        `json:"is_anomaly"`
	ThreatLabel  ThreatLabel `json:"threat_label"`
}

// DecisionRecord is one analyst decision, appended once and never updated.
type DecisionRecord struct {
	LogID        string  `json:"log_id"`
	AnalystLabel string  `json:"analyst_label"`
	TimeTakenSec float64 `json:"time_taken_sec"`
	Correct      bool    `json:"correct"`
}

// StreamStats are the aggregate event counts for one session, read back from
// the log store when the session stops.
type StreamStats struct {
	TotalEvents    int `json:"total_events"`
	TotalAnomalies int `json:"total_anomalies"`
	TotalCritical  int `json:"total_critical"`
}

// Score is the dual-axis result of one completed session.
type Score struct {
	SessionID string `json:"session_id"`

	DetectionAccuracy  float64 `json:"detection_accuracy"`
	FalsePositiveRate  float64 `json:"false_positive_rate"`
	ResponseSpeed      float64 `json:"response_speed_sec"`
	CorrectEscalations int     `json:"correct_escalations"`
	TechnicalScore     float64 `json:"technical_score"`

	AvgDecisionTimeSec float64 `json:"avg_decision_time_sec"`
	DecisionAccuracy   float64 `json:"decision_accuracy"`
	StressFactor       float64 `json:"stress_factor"`
	PressureScore      float64 `json:"pressure_score"`

	FinalScore float64   `json:"final_score"`
	Grade      string    `json:"grade"`
	Feedback   string    `json:"feedback"`
	ScoredAt   time.Time `json:"scored_at"`
}
