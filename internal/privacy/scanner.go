// Package privacy detects disallowed personal-data patterns in agent
// rationale text. Shared by the privacy synthesis agent and the
// privacy_breach safety trigger.
package privacy

import "regexp"

// Pattern is one named disallowed-data pattern.
type Pattern struct {
	Name string
	re   *regexp.Regexp
}

// defaultPatterns covers the personal-data shapes that must never appear in
// a rationale that is persisted to history.
var defaultPatterns = []Pattern{
	{Name: "email", re: regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)},
	{Name: "ssn", re: regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)},
	{Name: "card_number", re: regexp.MustCompile(`\b(?:\d[ -]?){13,16}\b`)},
	{Name: "phone", re: regexp.MustCompile(`\+\d{1,3}[ -]?\d{3}[ -]?\d{3}[ -]?\d{2,4}\b`)},
}

// Scanner checks text against a fixed pattern set.
type Scanner struct {
	patterns []Pattern
}

// NewScanner creates a scanner with the default pattern set.
func NewScanner() *Scanner {
	return &Scanner{patterns: defaultPatterns}
}

// Scan returns the name of the first matching pattern and true when the text
// contains disallowed personal data.
func (s *Scanner) Scan(text string) (string, bool) {
	for _, p := range s.patterns {
		if p.re.MatchString(text) {
			return p.Name, true
		}
	}
	return "", false
}

// ScanAll scans multiple texts, returning the first match found.
func (s *Scanner) ScanAll(texts []string) (string, bool) {
	for _, t := range texts {
		if name, ok := s.Scan(t); ok {
			return name, true
		}
	}
	return "", false
}
