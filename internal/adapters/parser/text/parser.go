// Package text parses free-form bulk input into candidate yard entries.
// The input is what gate clerks paste from messages or spreadsheets:
// one record per line, fields separated by commas, semicolons or tabs.
//
//	Acme Grains, maize, 30t, GR-1234-AB
//	Duro Mills; flour; 24.5 t; GT-456-CD; WB-2026-042
//
// The first field is the supplier or customer name, the second the
// product. The remaining fields are recognized by shape: a number with
// an optional unit is the quantity, a token containing digits and
// dashes is the plate, and a token starting with "WB" (or prefixed
// "waybill:") is the waybill.
package text

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/jbctechsolutions/yardsync/internal/application/ports"
)

var (
	quantityRe = regexp.MustCompile(`^(\d+(?:[.,]\d+)?)\s*([a-zA-Z]{0,8})$`)
	plateRe    = regexp.MustCompile(`^[A-Z]{1,3}[- ]?\d{1,5}[- ]?[A-Z]{0,3}$`)
	waybillRe  = regexp.MustCompile(`^(?i)(?:waybill[:=]\s*)?(WB[-/]?\S+)$`)
)

// Parser implements ports.ParserPort over delimited text lines.
type Parser struct{}

// New creates a text parser.
func New() *Parser {
	return &Parser{}
}

// Parse splits the text into one candidate entry per non-empty line.
// Lines starting with # are skipped. Parsing never fails; entries that
// are missing fields are caught by Validate.
func (p *Parser) Parse(text string) []ports.ParsedEntry {
	var entries []ports.ParsedEntry

	for i, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		entries = append(entries, parseLine(line, i+1))
	}
	return entries
}

// parseLine extracts one entry from a delimited line.
func parseLine(line string, lineNo int) ports.ParsedEntry {
	entry := ports.ParsedEntry{Line: lineNo}

	fields := splitFields(line)
	if len(fields) > 0 {
		entry.Name = fields[0]
	}
	if len(fields) > 1 {
		entry.Product = fields[1]
	}

	for _, field := range fields[min(2, len(fields)):] {
		switch {
		case entry.Quantity == 0 && quantityRe.MatchString(field):
			m := quantityRe.FindStringSubmatch(field)
			qty, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
			if err == nil {
				entry.Quantity = qty
				entry.Unit = strings.ToLower(m[2])
			}
		case entry.Waybill == "" && waybillRe.MatchString(field):
			entry.Waybill = waybillRe.FindStringSubmatch(field)[1]
		case entry.TruckPlate == "" && plateRe.MatchString(strings.ToUpper(field)):
			entry.TruckPlate = strings.ToUpper(field)
		}
	}
	return entry
}

// splitFields breaks a line on the first delimiter kind it contains.
// Comma wins over semicolon wins over tab, so embedded spaces in names
// survive.
func splitFields(line string) []string {
	var parts []string
	switch {
	case strings.Contains(line, ";"):
		parts = strings.Split(line, ";")
	case strings.Contains(line, ","):
		parts = strings.Split(line, ",")
	case strings.Contains(line, "\t"):
		parts = strings.Split(line, "\t")
	default:
		parts = strings.Fields(line)
	}

	fields := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			fields = append(fields, p)
		}
	}
	return fields
}

// Validate partitions entries into accepted ones and rejection issues.
// Name, product and a positive quantity are required; plate and waybill
// are optional at announcement time.
func (p *Parser) Validate(entries []ports.ParsedEntry) ports.ValidationResult {
	var result ports.ValidationResult

	for _, e := range entries {
		issues := validateEntry(e)
		if len(issues) == 0 {
			result.Valid = append(result.Valid, e)
		} else {
			result.Issues = append(result.Issues, issues...)
		}
	}
	return result
}

func validateEntry(e ports.ParsedEntry) []ports.ValidationIssue {
	var issues []ports.ValidationIssue

	if e.Name == "" {
		issues = append(issues, ports.ValidationIssue{Line: e.Line, Field: "name", Message: "name is required"})
	}
	if e.Product == "" {
		issues = append(issues, ports.ValidationIssue{Line: e.Line, Field: "product", Message: "product is required"})
	}
	if e.Quantity <= 0 {
		issues = append(issues, ports.ValidationIssue{Line: e.Line, Field: "quantity", Message: "quantity must be a positive number"})
	}
	return issues
}
