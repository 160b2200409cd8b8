// Package pipeline translates free-text queries into document-store search
// requests: an external model extracts a structured search snippet, the
// generator deterministically turns it into a bool query, and the searcher
// executes it with score-threshold post-filtering.
package pipeline

import (
	"encoding/json"
	"fmt"

	"github.com/xeipuuv/gojsonschema"

	stderrors "trade-assistant/internal/common/errors"
)

// Document-store field names, matching the ingested declaration schema.
const (
	FieldDate         = "ngay"
	FieldSupplier     = "nha_cung_cap"
	FieldHSCode       = "hs_code"
	FieldProductName  = "ten_hang"
	FieldQuantity     = "luong"
	FieldUnit         = "don_vi_tinh"
	FieldOrigin       = "xuat_xu"
	FieldDeliveryTerm = "dieu_kien_giao_hang"
	FieldTaxIE        = "thue_suat_xnk"
	FieldTaxSC        = "thue_suat_ttdb"
	FieldTaxVAT       = "thue_suat_vat"
	FieldTaxSafeguard = "thue_suat_tu_ve"
	FieldTaxEnv       = "thue_suat_bvmt"
	FieldDirection    = "tinh_trang"
)

// projectedFields is the response projection allow-list; nothing outside it
// leaves the document store.
var projectedFields = []string{
	FieldDate,
	FieldSupplier,
	FieldHSCode,
	FieldProductName,
	FieldQuantity,
	FieldUnit,
	FieldOrigin,
	FieldDeliveryTerm,
	FieldTaxIE,
	FieldTaxSC,
	FieldTaxVAT,
	FieldTaxSafeguard,
	FieldTaxEnv,
	FieldDirection,
}

// DateRange bounds a date dimension; both ends are ISO "YYYY-MM-DD".
type DateRange struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// RangeQueries groups the snippet's range buckets; only the date axis is
// rangeable.
type RangeQueries struct {
	Date *DateRange `json:"ngay,omitempty"`
}

// SearchSnippet is the extractor's structured output: field/value buckets
// keyed by treatment kind.
type SearchSnippet struct {
	FuzzySearch  map[string]string `json:"fuzzy_search,omitempty"`
	RegexSearch  map[string]string `json:"regex_search,omitempty"`
	ExactMatch   map[string]string `json:"exact_match,omitempty"`
	RangeQueries RangeQueries      `json:"range_queries,omitempty"`
}

// snippetSchema constrains each bucket to its closed field list.
const snippetSchema = `{
	"type": "object",
	"properties": {
		"fuzzy_search": {
			"type": "object",
			"properties": {
				"ten_hang": {"type": "string"},
				"nha_cung_cap": {"type": "string"},
				"xuat_xu": {"type": "string"}
			},
			"additionalProperties": false
		},
		"regex_search": {
			"type": "object",
			"properties": {
				"hs_code": {"type": "string"}
			},
			"additionalProperties": false
		},
		"exact_match": {
			"type": "object",
			"properties": {
				"ngay": {"type": "string"},
				"dieu_kien_giao_hang": {"type": "string"},
				"tinh_trang": {"type": "string"}
			},
			"additionalProperties": false
		},
		"range_queries": {
			"type": "object",
			"properties": {
				"ngay": {
					"type": "object",
					"properties": {
						"start_date": {"type": "string"},
						"end_date": {"type": "string"}
					},
					"required": ["start_date", "end_date"],
					"additionalProperties": false
				}
			},
			"additionalProperties": false
		}
	},
	"additionalProperties": false
}`

var compiledSnippetSchema = gojsonschema.NewStringLoader(snippetSchema)

// ParseSnippet validates raw extractor output against the snippet schema and
// decodes it. Invalid output is a non-retryable failure.
func ParseSnippet(raw json.RawMessage) (SearchSnippet, error) {
	result, err := gojsonschema.Validate(compiledSnippetSchema, gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return SearchSnippet{}, stderrors.NewInvalidExtractorOutputError(err.Error())
	}
	if !result.Valid() {
		details := ""
		for _, e := range result.Errors() {
			if details != "" {
				details += "; "
			}
			details += e.String()
		}
		return SearchSnippet{}, stderrors.NewInvalidExtractorOutputError(details)
	}

	var snippet SearchSnippet
	if err := json.Unmarshal(raw, &snippet); err != nil {
		return SearchSnippet{}, stderrors.NewInvalidExtractorOutputError(err.Error())
	}
	return snippet, nil
}

// ExtractionSchema is the function-call schema handed to the external model.
func ExtractionSchema() map[string]interface{} {
	var params map[string]interface{}
	if err := json.Unmarshal([]byte(snippetSchema), &params); err != nil {
		panic(fmt.Sprintf("snippet schema is not valid JSON: %v", err))
	}
	return params
}
