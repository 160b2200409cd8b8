// Package models holds the trade-declaration data model shared by the
// structured store, the query engine, and the formatters.
package models

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Direction is the transaction direction of a trade record.
type Direction string

const (
	DirectionImport  Direction = "import"
	DirectionExport  Direction = "export"
	DirectionUnknown Direction = ""
)

// ParseDirection normalizes stored or user-supplied direction values,
// including the Vietnamese source-data vocabulary.
func ParseDirection(s string) Direction {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "import", "nhập", "nhap":
		return DirectionImport
	case "export", "xuất", "xuat":
		return DirectionExport
	default:
		return DirectionUnknown
	}
}

// deliveryTerms is the closed set of accepted delivery-term codes
// (Incoterms 2020).
var deliveryTerms = map[string]struct{}{
	"EXW": {}, "FCA": {}, "FAS": {}, "FOB": {},
	"CFR": {}, "CIF": {}, "CPT": {}, "CIP": {},
	"DAP": {}, "DPU": {}, "DDP": {},
}

// ValidDeliveryTerm reports whether code belongs to the accepted set.
func ValidDeliveryTerm(code string) bool {
	_, ok := deliveryTerms[strings.ToUpper(strings.TrimSpace(code))]
	return ok
}

// hsCodePattern matches dot-delimited groups of digits, e.g. "8471.30.10".
var hsCodePattern = regexp.MustCompile(`^\d+(\.\d+)*$`)

// ValidHSCode reports whether code matches the dotted-digit-group grammar.
func ValidHSCode(code string) bool {
	return hsCodePattern.MatchString(code)
}

// TradeRecord is one row of the trade-declaration dataset. Records are
// bulk-created at file ingestion and immutable afterwards, except for bulk
// delete by source file.
type TradeRecord struct {
	Date                  *time.Time
	Supplier              string
	HSCode                string
	ProductName           string
	Direction             Direction
	Unit                  string
	Quantity              *float64
	Origin                string
	DeliveryTerm          string
	TaxImportExport       *float64
	TaxSpecialConsumption *float64
	TaxVAT                *float64
	TaxSafeguard          *float64
	TaxEnvironment        *float64
	SourceFile            string
}

// Validate checks the record invariants: direction and delivery term belong
// to their closed sets or are unset, and a present HS code matches the
// dotted-digit grammar.
func (r *TradeRecord) Validate() error {
	switch r.Direction {
	case DirectionImport, DirectionExport, DirectionUnknown:
	default:
		return fmt.Errorf("invalid direction %q", r.Direction)
	}
	if r.DeliveryTerm != "" && !ValidDeliveryTerm(r.DeliveryTerm) {
		return fmt.Errorf("invalid delivery term %q", r.DeliveryTerm)
	}
	if r.HSCode != "" && !ValidHSCode(r.HSCode) {
		return fmt.Errorf("invalid hs code %q", r.HSCode)
	}
	if r.Quantity != nil && *r.Quantity < 0 {
		return fmt.Errorf("negative quantity %v", *r.Quantity)
	}
	return nil
}

// QueryFilter is the logical conjunction of optional filter dimensions,
// built once per user turn and consumed by the synthesizer.
type QueryFilter struct {
	Code      string
	Supplier  string
	Date      *time.Time
	DateStart *time.Time
	DateEnd   *time.Time
	Direction Direction
}

// Validate enforces the exact-date / date-range mutual exclusivity and that a
// range carries both bounds.
func (f *QueryFilter) Validate() error {
	hasRange := f.DateStart != nil || f.DateEnd != nil
	if f.Date != nil && hasRange {
		return fmt.Errorf("exact date and date range are mutually exclusive")
	}
	if hasRange && (f.DateStart == nil || f.DateEnd == nil) {
		return fmt.Errorf("date range requires both start and end")
	}
	if f.DateStart != nil && f.DateEnd != nil && f.DateEnd.Before(*f.DateStart) {
		return fmt.Errorf("date range end precedes start")
	}
	return nil
}

// HasDateDimension reports whether the filter constrains the date axis.
func (f *QueryFilter) HasDateDimension() bool {
	return f.Date != nil || f.DateStart != nil
}

// EntityCandidateSet is the output of fuzzy resolution: an ordered,
// deduplicated set of canonical strings matching a user-supplied fragment.
type EntityCandidateSet struct {
	Input      string
	Candidates []string
}

// NewEntityCandidateSet deduplicates candidates while preserving first-seen
// order, keeping repeated resolutions byte-stable.
func NewEntityCandidateSet(input string, candidates []string) EntityCandidateSet {
	seen := make(map[string]struct{}, len(candidates))
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return EntityCandidateSet{Input: input, Candidates: out}
}

// Empty reports that nothing matched the fragment.
func (s EntityCandidateSet) Empty() bool { return len(s.Candidates) == 0 }

// Resolved reports that the fragment matched exactly one canonical value.
func (s EntityCandidateSet) Resolved() bool { return len(s.Candidates) == 1 }

// Ambiguous reports that the fragment needs user disambiguation.
func (s EntityCandidateSet) Ambiguous() bool { return len(s.Candidates) > 1 }

// One returns the single resolved candidate; callers must check Resolved.
func (s EntityCandidateSet) One() string {
	if len(s.Candidates) == 0 {
		return ""
	}
	return s.Candidates[0]
}
