package pipeline

import (
	"strconv"
	"strings"

	"github.com/dvloznov/bankflow/internal/domain"
)

// Verdict is the structured form of a model classification response.
type Verdict struct {
	IsAnomaly   bool
	Confidence  float64
	Type        domain.AnomalyType
	Severity    domain.Severity
	Explanation string
}

// ParseVerdict reads the expected five-line response format:
//
//	IS_ANOMALY: [YES/NO]
//	CONFIDENCE: [0.0-1.0]
//	ANOMALY_TYPE: [type]
//	SEVERITY: [LOW/MEDIUM/HIGH/CRITICAL]
//	EXPLANATION: [text]
//
// Parsing is permissive: unrecognized lines are ignored, an unparsable
// confidence stays 0.0 and missing fields keep their defaults. It never
// fails.
func ParseVerdict(response string) Verdict {
	v := Verdict{
		Type:        domain.AnomalyOther,
		Severity:    domain.SeverityMedium,
		Explanation: strings.TrimSpace(response),
	}

	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "IS_ANOMALY:"):
			v.IsAnomaly = strings.Contains(strings.ToUpper(line), "YES")
		case strings.HasPrefix(line, "CONFIDENCE:"):
			raw := afterLastColon(line)
			if f, err := strconv.ParseFloat(raw, 64); err == nil {
				v.Confidence = f
			}
		case strings.HasPrefix(line, "ANOMALY_TYPE:"):
			raw := strings.ToLower(afterLastColon(line))
			t := domain.AnomalyType(strings.ReplaceAll(raw, " ", "_"))
			if domain.ValidAnomalyType(t) {
				v.Type = t
			}
		case strings.HasPrefix(line, "SEVERITY:"):
			s := domain.Severity(strings.ToLower(afterLastColon(line)))
			if domain.ValidSeverity(s) {
				v.Severity = s
			}
		case strings.HasPrefix(line, "EXPLANATION:"):
			if _, rest, ok := strings.Cut(line, ":"); ok {
				if trimmed := strings.TrimSpace(rest); trimmed != "" {
					v.Explanation = trimmed
				}
			}
		}
	}

	return v
}

func afterLastColon(line string) string {
	idx := strings.LastIndex(line, ":")
	if idx < 0 {
		return ""
	}
	return strings.TrimSpace(line[idx+1:])
}
