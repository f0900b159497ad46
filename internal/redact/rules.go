package redact

import "regexp"

// Rules selects which detector categories run and supplies caller-provided
// literal names and custom patterns. A nil Rules disables redaction
// entirely.
type Rules struct {
	Identifiers   bool
	ContactInfo   bool
	Financial     bool
	Secrets       bool
	Network       bool
	Location      bool
	Vehicle       bool
	Healthcare    bool
	KeyValuePairs bool

	// LiteralNames are redacted case-insensitively on word boundaries,
	// after every category detector has run.
	LiteralNames []string

	// CustomPatterns are additional regular expressions. Patterns that do
	// not compile are skipped; a bad pattern never aborts sanitization.
	CustomPatterns []string
}

// AllCategories returns rules with every category detector enabled.
func AllCategories() *Rules {
	return &Rules{
		Identifiers:   true,
		ContactInfo:   true,
		Financial:     true,
		Secrets:       true,
		Network:       true,
		Location:      true,
		Vehicle:       true,
		Healthcare:    true,
		KeyValuePairs: true,
	}
}

// detector is one pattern pass. When keepLabel is set the pattern's first
// capture group is a recognized label ("City:", "password=") that survives
// redaction; only the value after it is replaced.
type detector struct {
	re        *regexp.Regexp
	keepLabel bool
}

func full(expr string) detector  { return detector{re: regexp.MustCompile(expr)} }
func label(expr string) detector { return detector{re: regexp.MustCompile(expr), keepLabel: true} }

// Structural secrets run before any fine-grained detector so a key block is
// swallowed whole instead of leaking fragments to smaller token patterns.
var secretsCoarse = []detector{
	// PEM-framed material: private keys, certificates, CSRs.
	full(`(?s)-----BEGIN [A-Z0-9 ]+-----.*?-----END [A-Z0-9 ]+-----`),
}

var identifierDetectors = []detector{
	// US social security numbers.
	full(`\b\d{3}-\d{2}-\d{4}\b`),
	label(`(?i)(\bpassport\s*(?:no|number|num|#)?\s*[:=]\s*)([A-Z0-9]{6,9})\b`),
	label(`(?i)(\b(?:driver'?s?\s*license|dl)\s*(?:no|number|#)?\s*[:=]\s*)([A-Z0-9-]{4,15})\b`),
}

var contactDetectors = []detector{
	full(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`),
	full(`\b(?:\+?\d{1,3}[\s.-]?)?\(?\d{3}\)?[\s.-]?\d{3}[\s.-]?\d{4}\b`),
	label(`(?i)(\b(?:home\s*|street\s*)?address\s*[:=]\s*)([^\r\n]+)`),
}

var financialDetectors = []detector{
	// 16-digit payment cards, optionally grouped.
	full(`\b(?:\d{4}[ -]?){3}\d{4}\b`),
	// 15-digit Amex.
	full(`\b3[47]\d{2}[ -]?\d{6}[ -]?\d{5}\b`),
	full(`\b[A-Z]{2}\d{2}[A-Z0-9]{10,30}\b`),
	label(`(?i)(\b(?:account|acct)\s*(?:no|number|#)?\s*[:=]\s*)(\d[\d -]{3,20})\b`),
}

var secretsFineDetectors = []detector{
	full(`\bAKIA[0-9A-Z]{16}\b`),
	full(`\beyJ[A-Za-z0-9_-]{4,}\.[A-Za-z0-9_-]{4,}\.[A-Za-z0-9_-]{4,}\b`),
	label(`(?i)(\bbearer\s+)([A-Za-z0-9._~+/-]+=*)`),
	label(`(?i)(\bauthorization\s*[:=]\s*)([^\r\n]+)`),
}

var networkDetectors = []detector{
	full(`\b(?:[0-9A-Fa-f]{2}[:-]){5}[0-9A-Fa-f]{2}\b`),
	full(`\b(?:\d{1,3}\.){3}\d{1,3}\b`),
	full(`\b(?:[0-9A-Fa-f]{1,4}:){3,7}[0-9A-Fa-f]{1,4}\b`),
}

var locationDetectors = []detector{
	// Decimal lat/long pairs.
	full(`[-+]?\d{1,2}\.\d{3,8},\s*[-+]?\d{1,3}\.\d{3,8}`),
	label(`(?i)(\b(?:city|state|country|zip(?:\s*code)?|postal\s*code|lat(?:itude)?|lon(?:gitude)?)\s*[:=]\s*)([^\s,;][^\r\n,;]*)`),
}

var vehicleDetectors = []detector{
	label(`(?i)(\bvin\s*[:=]\s*)([A-HJ-NPR-Z0-9]{11,17})\b`),
	// Bare 17-char VINs; letters I, O and Q are never used.
	full(`\b[A-HJ-NPR-Z0-9]{17}\b`),
	label(`(?i)(\b(?:license\s*)?plate\s*(?:no|number|#)?\s*[:=]\s*)([A-Z0-9 -]{2,10})\b`),
}

var healthcareDetectors = []detector{
	label(`(?i)(\b(?:mrn|medical\s*record\s*(?:no|number)|npi|member\s*id|insurance\s*id|policy\s*(?:no|number))\s*[:=]\s*)([A-Za-z0-9-]+)\b`),
}

var keyValueDetectors = []detector{
	label(`(?i)(\b(?:password|passwd|pwd|secret|token|api[_-]?key|access[_-]?key|client[_-]?secret)\s*[:=]\s*)(\S+)`),
}
