package report

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"

	"github.com/akorzh/Conveyor/internal/domain"
)

// junitSuites — корневой элемент <testsuites> отчёта JUnit XML.
type junitSuites struct {
	XMLName xml.Name     `xml:"testsuites"`
	Suites  []junitSuite `xml:"testsuite"`
}

// junitSuite — элемент <testsuite>. Может быть и корневым:
// pytest с --junitxml пишет одиночный <testsuite>.
type junitSuite struct {
	XMLName  xml.Name     `xml:"testsuite"`
	Tests    int          `xml:"tests,attr"`
	Failures int          `xml:"failures,attr"`
	Errors   int          `xml:"errors,attr"`
	Skipped  int          `xml:"skipped,attr"`
	Suites   []junitSuite `xml:"testsuite"`
}

// ParseJUnit разбирает JUnit XML отчёт и возвращает сводку.
//
// Принимает оба варианта корня: <testsuites> с вложенными
// <testsuite> и одиночный <testsuite>.
func ParseJUnit(r io.Reader) (*domain.TestSummary, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}

	// Сначала пробуем <testsuites>
	var suites junitSuites
	if err := xml.Unmarshal(data, &suites); err == nil {
		summary := &domain.TestSummary{}
		for _, s := range suites.Suites {
			accumulate(summary, &s)
		}
		return summary, nil
	}

	// Одиночный <testsuite>
	var suite junitSuite
	if err := xml.Unmarshal(data, &suite); err != nil {
		return nil, fmt.Errorf("parse junit xml: %w", err)
	}

	summary := &domain.TestSummary{}
	accumulate(summary, &suite)
	return summary, nil
}

// ParseJUnitFile разбирает JUnit XML отчёт из файла.
func ParseJUnitFile(path string) (*domain.TestSummary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open report: %w", err)
	}
	defer f.Close()

	return ParseJUnit(f)
}

// Merge складывает несколько сводок в одну.
// Возвращает nil, если сводок нет.
func Merge(summaries ...*domain.TestSummary) *domain.TestSummary {
	if len(summaries) == 0 {
		return nil
	}

	total := &domain.TestSummary{}
	for _, s := range summaries {
		if s == nil {
			continue
		}
		total.Total += s.Total
		total.Failures += s.Failures
		total.Errors += s.Errors
		total.Skipped += s.Skipped
	}
	return total
}

// accumulate добавляет счётчики suite (и вложенных suites) в сводку.
func accumulate(summary *domain.TestSummary, suite *junitSuite) {
	summary.Total += suite.Tests
	summary.Failures += suite.Failures
	summary.Errors += suite.Errors
	summary.Skipped += suite.Skipped

	for i := range suite.Suites {
		accumulate(summary, &suite.Suites[i])
	}
}
