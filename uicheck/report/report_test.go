package report

import "testing"

func TestPageResultErrors(t *testing.T) {
	p := &PageResult{Violations: []Violation{
		{Check: CheckLinks, Severity: SeverityError},
		{Check: CheckTabbable, Severity: SeverityInfo},
		{Check: CheckStatus, Severity: SeverityError},
		{Check: CheckTabbable, Severity: SeverityWarning},
	}}
	if got := p.Errors(); got != 2 {
		t.Errorf("Errors() = %d, want 2", got)
	}
}

func TestUnmarshalPage_KeepsViolations(t *testing.T) {
	data := []byte(`{"id":"p1","url":"http://x/","status":500,"violations":[{"check":"status","severity":"error","url":"http://x/","message":"boom"}]}`)
	p, err := UnmarshalPage(data)
	if err != nil {
		t.Fatal(err)
	}
	if p.Status != 500 {
		t.Errorf("Status = %d, want 500", p.Status)
	}
	if len(p.Violations) != 1 || p.Violations[0].Check != CheckStatus {
		t.Errorf("Violations = %+v", p.Violations)
	}
}

func TestUnmarshalPage_Invalid(t *testing.T) {
	if _, err := UnmarshalPage([]byte(`{`)); err == nil {
		t.Error("expected error for truncated JSON")
	}
}
