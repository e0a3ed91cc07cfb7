package report

import (
	"strings"
	"testing"

	"github.com/akorzh/Conveyor/internal/domain"
)

func TestParseJUnit_SingleSuite(t *testing.T) {
	// pytest --junitxml пишет одиночный <testsuite>
	xml := `<?xml version="1.0" encoding="utf-8"?>
<testsuite name="pytest" tests="128" failures="2" errors="1" skipped="5" time="73.2">
	<testcase classname="ibis.tests.test_api" name="test_schema" time="0.01"/>
</testsuite>`

	summary, err := ParseJUnit(strings.NewReader(xml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if summary.Total != 128 {
		t.Errorf("expected 128 tests, got %d", summary.Total)
	}
	if summary.Failures != 2 {
		t.Errorf("expected 2 failures, got %d", summary.Failures)
	}
	if summary.Errors != 1 {
		t.Errorf("expected 1 error, got %d", summary.Errors)
	}
	if summary.Skipped != 5 {
		t.Errorf("expected 5 skipped, got %d", summary.Skipped)
	}
	if summary.Passed() {
		t.Error("summary with failures must not pass")
	}
}

func TestParseJUnit_Testsuites(t *testing.T) {
	xml := `<?xml version="1.0"?>
<testsuites>
	<testsuite name="unit" tests="50" failures="0" errors="0" skipped="1"/>
	<testsuite name="integration" tests="20" failures="0" errors="0" skipped="0"/>
</testsuites>`

	summary, err := ParseJUnit(strings.NewReader(xml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if summary.Total != 70 {
		t.Errorf("expected 70 tests, got %d", summary.Total)
	}
	if summary.Skipped != 1 {
		t.Errorf("expected 1 skipped, got %d", summary.Skipped)
	}
	if !summary.Passed() {
		t.Error("summary without failures must pass")
	}
}

func TestParseJUnit_Invalid(t *testing.T) {
	_, err := ParseJUnit(strings.NewReader("not xml at all"))
	if err == nil {
		t.Error("expected error for invalid xml")
	}
}

func TestMerge(t *testing.T) {
	merged := Merge(
		&domain.TestSummary{Total: 10, Failures: 1},
		nil,
		&domain.TestSummary{Total: 5, Errors: 2, Skipped: 1},
	)

	if merged.Total != 15 {
		t.Errorf("expected 15 tests, got %d", merged.Total)
	}
	if merged.Failures != 1 || merged.Errors != 2 || merged.Skipped != 1 {
		t.Errorf("unexpected merged counters: %+v", merged)
	}
}

func TestMerge_Empty(t *testing.T) {
	if Merge() != nil {
		t.Error("merge of nothing must be nil")
	}
}
