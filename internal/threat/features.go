package threat

import "socsim/internal/model"

// FeatureCount is the fixed width of the feature vector.
const FeatureCount = 5

// FeatureVector is the numeric representation of one event, in order:
// dest_port/1000, source_port/65535, protocol code, payload_len/1000,
// severity code.
type FeatureVector [FeatureCount]float64

var protocolCodes = map[model.Protocol]float64{
	model.ProtocolTCP:  0,
	model.ProtocolUDP:  1,
	model.ProtocolICMP: 2,
	model.ProtocolSMTP: 3,
}

var severityCodes = map[model.Severity]float64{
	model.SeverityLow:      0,
	model.SeverityMedium:   1,
	model.SeverityHigh:     2,
	model.SeverityCritical: 3,
}

// ExtractFeatures is total: any event, including the zero value, maps to a
// valid vector. A missing protocol reads as TCP, unrecognized protocols
// encode as 4, unknown severities as 0.
func ExtractFeatures(ev model.Event) FeatureVector {
	if ev.Protocol == "" {
		ev.Protocol = model.ProtocolTCP
	}
	proto, ok := protocolCodes[ev.Protocol]
	if !ok {
		proto = 4
	}
	return FeatureVector{
		float64(ev.DestPort) / 1000,
		float64(ev.SourcePort) / 65535,
		proto,
		float64(len(ev.RawPayload)) / 1000,
		severityCodes[ev.Severity],
	}
}
