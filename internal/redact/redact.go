// Package redact implements the rule-based text sanitizer applied to stack
// traces before they are persisted. Detection is an ordered sequence of
// regular-expression passes over the whole text; every non-overlapping match
// of an enabled category is replaced with a fixed placeholder. The approach
// is best-effort: novel formats can slip through and coincidental digit
// patterns can be caught.
package redact

import (
	"regexp"
	"strings"
)

// Placeholder is the token substituted for every redacted value.
const Placeholder = "[REDACTED]"

// Sanitize returns text with all enabled categories redacted. It is a pure
// function: the input is never mutated and a nil rules value returns the
// text unchanged. Sanitizing already-sanitized text is a no-op.
func Sanitize(text string, rules *Rules) string {
	if rules == nil || text == "" {
		return text
	}

	// Structural patterns first so e.g. a PEM block disappears as a unit
	// before token detectors can pick at its inner lines.
	if rules.Secrets {
		text = apply(text, secretsCoarse)
	}

	if rules.Identifiers {
		text = apply(text, identifierDetectors)
	}
	if rules.ContactInfo {
		text = apply(text, contactDetectors)
	}
	if rules.Financial {
		text = apply(text, financialDetectors)
	}
	if rules.Secrets {
		text = apply(text, secretsFineDetectors)
	}
	if rules.Network {
		text = apply(text, networkDetectors)
	}
	if rules.Location {
		text = apply(text, locationDetectors)
	}
	if rules.Vehicle {
		text = apply(text, vehicleDetectors)
	}
	if rules.Healthcare {
		text = apply(text, healthcareDetectors)
	}
	if rules.KeyValuePairs {
		text = apply(text, keyValueDetectors)
	}

	text = applyCustom(text, rules.CustomPatterns)
	text = applyLiteralNames(text, rules.LiteralNames)

	return text
}

func apply(text string, detectors []detector) string {
	for _, d := range detectors {
		if d.keepLabel {
			text = d.re.ReplaceAllString(text, "${1}"+Placeholder)
		} else {
			text = d.re.ReplaceAllLiteralString(text, Placeholder)
		}
	}
	return text
}

// applyCustom runs caller-supplied patterns. A pattern that fails to compile
// is skipped; malformed input must never make sanitization throw.
func applyCustom(text string, patterns []string) string {
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			continue
		}
		text = re.ReplaceAllLiteralString(text, Placeholder)
	}
	return text
}

// applyLiteralNames redacts the caller-supplied names, case-insensitively
// and on word boundaries, as the final pass.
func applyLiteralNames(text string, names []string) string {
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(name) + `\b`)
		if err != nil {
			continue
		}
		text = re.ReplaceAllLiteralString(text, Placeholder)
	}
	return text
}
