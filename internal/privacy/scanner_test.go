package privacy

import "testing"

func TestScanner_Scan(t *testing.T) {
	s := NewScanner()

	tests := []struct {
		name    string
		text    string
		match   string
		matched bool
	}{
		{"clean rationale", "RSI at 28 suggests oversold conditions, momentum positive", "", false},
		{"email", "forwarded from trader@example.com earlier today", "email", true},
		{"ssn", "account holder 123-45-6789 requested this", "ssn", true},
		{"card number", "funding card 4111 1111 1111 1111 was used", "card_number", true},
		{"phone", "call +1 555 123 4567 for confirmation", "phone", true},
		{"empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			match, ok := s.Scan(tt.text)
			if ok != tt.matched {
				t.Fatalf("Scan(%q) matched=%v, want %v", tt.text, ok, tt.matched)
			}
			if ok && match != tt.match {
				t.Errorf("Scan(%q) = %q, want %q", tt.text, match, tt.match)
			}
		})
	}
}

func TestScanner_ScanAll(t *testing.T) {
	s := NewScanner()

	texts := []string{
		"momentum positive over window",
		"client john.doe@corp.io flagged the position",
	}
	match, ok := s.ScanAll(texts)
	if !ok || match != "email" {
		t.Errorf("ScanAll = (%q, %v), want (email, true)", match, ok)
	}

	if _, ok := s.ScanAll([]string{"clean", "also clean"}); ok {
		t.Error("ScanAll matched clean texts")
	}
}
