package scenario

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"socsim/internal/model"
)

// Template is one attack pattern within a scenario. The payload may contain
// {src_ip}, {dest_ip}, {src_port}, {dest_port} and {user} placeholders.
type Template struct {
	EventType string
	Protocol  model.Protocol
	DestPort  int
	Payload   string
}

// RenderVars carries the per-event substitutions for a payload template.
type RenderVars struct {
	SrcIP    string
	DestIP   string
	SrcPort  int
	DestPort int
	User     string
}

func (t Template) Render(v RenderVars) string {
	r := strings.NewReplacer(
		"{src_ip}", v.SrcIP,
		"{dest_ip}", v.DestIP,
		"{src_port}", strconv.Itoa(v.SrcPort),
		"{dest_port}", strconv.Itoa(v.DestPort),
		"{user}", v.User,
	)
	return r.Replace(t.Payload)
}

var attackTemplates = map[model.Scenario][]Template{
	model.ScenarioBruteForce: {
		{EventType: "SSH_LOGIN_ATTEMPT", Protocol: model.ProtocolTCP, DestPort: 22,
			Payload: "Failed password for {user} from {src_ip} port {src_port} ssh2"},
		{EventType: "SSH_LOGIN_ATTEMPT", Protocol: model.ProtocolTCP, DestPort: 22,
			Payload: "Invalid user {user} from {src_ip}"},
		{EventType: "AUTH_BRUTE_FORCE_DETECTED", Protocol: model.ProtocolTCP, DestPort: 22,
			Payload: "Repeated login failure threshold exceeded from {src_ip}"},
	},
	model.ScenarioSQLInjection: {
		{EventType: "HTTP_SQLI_ATTEMPT", Protocol: model.ProtocolTCP, DestPort: 80,
			Payload: "GET /login?id=1' OR '1'='1 HTTP/1.1 from {src_ip}"},
		{EventType: "HTTP_SQLI_ATTEMPT", Protocol: model.ProtocolTCP, DestPort: 443,
			Payload: `POST /api/search body: {"q":"'; DROP TABLE users; --"}`},
		{EventType: "WAF_BLOCK", Protocol: model.ProtocolTCP, DestPort: 443,
			Payload: "SQLi pattern blocked from {src_ip}: UNION SELECT payload detected"},
	},
	model.ScenarioRansomware: {
		{EventType: "FILE_ENCRYPTION_ACTIVITY", Protocol: model.ProtocolTCP, DestPort: 445,
			Payload: "Mass file rename detected: *.docx -> *.locked from {src_ip}"},
		{EventType: "C2_BEACON", Protocol: model.ProtocolTCP, DestPort: 443,
			Payload: "Outbound C2 communication to {dest_ip}:{dest_port}"},
		{EventType: "REGISTRY_MODIFICATION", Protocol: model.ProtocolNone, DestPort: 0,
			Payload: `Persistence key added: HKCU\Software\Microsoft\Windows\CurrentVersion\Run`},
	},
	model.ScenarioDDoS: {
		{EventType: "FLOOD_DETECTED", Protocol: model.ProtocolUDP, DestPort: 53,
			Payload: "UDP flood: 50,000 pps from {src_ip} targeting {dest_ip}"},
		{EventType: "AMPLIFICATION_ATTACK", Protocol: model.ProtocolUDP, DestPort: 53,
			Payload: "DNS amplification from {src_ip}, amplification factor 50x"},
		{EventType: "SYN_FLOOD", Protocol: model.ProtocolTCP, DestPort: 80,
			Payload: "SYN flood detected from {src_ip}: 10,000 half-open connections"},
	},
	model.ScenarioLateralMovement: {
		{EventType: "PASS_THE_HASH", Protocol: model.ProtocolTCP, DestPort: 445,
			Payload: "NTLM pass-the-hash from {src_ip} targeting {dest_ip}"},
		{EventType: "KERBEROASTING", Protocol: model.ProtocolTCP, DestPort: 88,
			Payload: "Kerberos TGS request for SPN from compromised account from {src_ip}"},
		{EventType: "RDP_BRUTE_FORCE", Protocol: model.ProtocolTCP, DestPort: 3389,
			Payload: "RDP brute-force attempt from {src_ip}"},
	},
	model.ScenarioDataExfiltration: {
		{EventType: "DNS_TUNNELING", Protocol: model.ProtocolUDP, DestPort: 53,
			Payload: "Unusual DNS query length from {src_ip}: base64 payload suspected"},
		{EventType: "LARGE_OUTBOUND_TRANSFER", Protocol: model.ProtocolTCP, DestPort: 443,
			Payload: "250MB outbound transfer to {dest_ip}:443 - above baseline"},
		{EventType: "CLOUD_EXFIL_ATTEMPT", Protocol: model.ProtocolTCP, DestPort: 443,
			Payload: "Bulk upload to unknown cloud storage from {src_ip}"},
	},
	model.ScenarioPhishing: {
		{EventType: "MALICIOUS_EMAIL_DETECTED", Protocol: model.ProtocolSMTP, DestPort: 25,
			Payload: "Phishing email from spoof@{src_ip}: Subject 'Your account is suspended'"},
		{EventType: "MACRO_EXECUTION", Protocol: model.ProtocolNone, DestPort: 0,
			Payload: "Office macro executed in downloaded attachment on host {dest_ip}"},
		{EventType: "CREDENTIAL_HARVESTING_URL", Protocol: model.ProtocolTCP, DestPort: 443,
			Payload: "User accessed phishing URL: http://secure-login-{src_ip}.evil.com"},
	},
	model.ScenarioZeroDay: {
		{EventType: "UNKNOWN_EXPLOIT_SIGNATURE", Protocol: model.ProtocolTCP, DestPort: 8080,
			Payload: "Unknown exploit payload from {src_ip}: no matching CVE signature"},
		{EventType: "MEMORY_CORRUPTION_DETECTED", Protocol: model.ProtocolNone, DestPort: 0,
			Payload: "Buffer overflow attempt on pid 1234 from {src_ip}"},
		{EventType: "ZERO_DAY_INDICATOR", Protocol: model.ProtocolTCP, DestPort: 443,
			Payload: "Behavioural anomaly - novel attack pattern detected from {src_ip}"},
	},
}

// severityWeights orders weights as low, medium, high, critical.
var severityWeights = map[model.Difficulty][4]float64{
	model.DifficultyEasy:   {0.5, 0.3, 0.15, 0.05},
	model.DifficultyMedium: {0.2, 0.4, 0.25, 0.15},
	model.DifficultyHard:   {0.05, 0.20, 0.40, 0.35},
}

// Templates returns the template set for a scenario. Unknown scenarios fall
// back to brute_force rather than failing.
func Templates(s model.Scenario) []Template {
	if ts, ok := attackTemplates[s]; ok {
		return ts
	}
	return attackTemplates[model.ScenarioBruteForce]
}

// WeightsFor returns the severity distribution for a difficulty tier,
// defaulting to medium for unknown tiers.
func WeightsFor(d model.Difficulty) [4]float64 {
	if w, ok := severityWeights[d]; ok {
		return w
	}
	return severityWeights[model.DifficultyMedium]
}

const weightEpsilon = 1e-9

// Validate checks every severity-weight vector sums to 1 with non-negative
// entries. Called once at startup.
func Validate() error {
	for tier, w := range severityWeights {
		sum := 0.0
		for i, v := range w {
			if v < 0 {
				return fmt.Errorf("severity weight %d for tier %s is negative", i, tier)
			}
			sum += v
		}
		if math.Abs(sum-1.0) > weightEpsilon {
			return fmt.Errorf("severity weights for tier %s sum to %v, want 1", tier, sum)
		}
	}
	for sc, ts := range attackTemplates {
		if len(ts) == 0 {
			return fmt.Errorf("scenario %s has no templates", sc)
		}
	}
	return nil
}
