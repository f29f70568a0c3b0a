package ports

// ParsedEntry is a single record extracted from free-form bulk input.
type ParsedEntry struct {
	Name       string  // Supplier or customer name
	Product    string  // Product description
	Quantity   float64 // Declared quantity
	Unit       string  // Quantity unit, if given
	TruckPlate string  // Vehicle plate, if given
	Waybill    string  // Waybill number, if given
	Line       int     // 1-based source line for error reporting
}

// ValidationIssue describes why a parsed entry was rejected.
type ValidationIssue struct {
	Line    int    `json:"line"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationResult separates usable entries from rejected ones.
// Only Valid entries may reach the entity services.
type ValidationResult struct {
	Valid  []ParsedEntry
	Issues []ValidationIssue
}

// ParserPort extracts structured entries from pasted or imported text.
// Parsing is tolerant; Validate decides what is allowed through.
type ParserPort interface {
	// Parse splits free-form text into candidate entries.
	Parse(text string) []ParsedEntry

	// Validate checks candidate entries and partitions them into
	// accepted entries and rejection issues.
	Validate(entries []ParsedEntry) ValidationResult
}
