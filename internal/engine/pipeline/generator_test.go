package pipeline

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trade-assistant/internal/common/config"
	stderrors "trade-assistant/internal/common/errors"
)

func testPipelineConfig() config.PipelineConfig {
	return config.PipelineConfig{
		MaxEdits:           2,
		PrefixLength:       3,
		MaxExpansions:      20,
		ScoreThreshold:     0.5,
		PreFilterThreshold: 0.1,
		ResultLimit:        20,
	}
}

func TestParseSnippet(t *testing.T) {
	raw := json.RawMessage(`{
		"fuzzy_search": {"ten_hang": "chim bồ câu"},
		"regex_search": {"hs_code": "^0106"},
		"exact_match": {"tinh_trang": "nhập"},
		"range_queries": {"ngay": {"start_date": "2024-01-01", "end_date": "2024-01-31"}}
	}`)

	snippet, err := ParseSnippet(raw)
	require.NoError(t, err)
	assert.Equal(t, "chim bồ câu", snippet.FuzzySearch[FieldProductName])
	assert.Equal(t, "^0106", snippet.RegexSearch[FieldHSCode])
	require.NotNil(t, snippet.RangeQueries.Date)
	assert.Equal(t, "2024-01-01", snippet.RangeQueries.Date.StartDate)
}

func TestParseSnippetRejectsUnknownFields(t *testing.T) {
	_, err := ParseSnippet(json.RawMessage(`{"fuzzy_search": {"secret_field": "x"}}`))
	require.Error(t, err)
	assert.Equal(t, stderrors.ErrCodeInvalidExtractorOutput, stderrors.CodeOf(err))
}

func TestParseSnippetRejectsMalformedJSON(t *testing.T) {
	_, err := ParseSnippet(json.RawMessage(`{not json`))
	require.Error(t, err)
	assert.Equal(t, stderrors.ErrCodeInvalidExtractorOutput, stderrors.CodeOf(err))
}

func TestParseSnippetRejectsHalfRange(t *testing.T) {
	_, err := ParseSnippet(json.RawMessage(`{"range_queries": {"ngay": {"start_date": "2024-01-01"}}}`))
	require.Error(t, err)
}

func TestBuildFuzzyClauses(t *testing.T) {
	g := NewGenerator(testPipelineConfig())

	body := g.Build(SearchSnippet{
		FuzzySearch: map[string]string{FieldProductName: "chim bồ câu"},
	})

	boolQuery := body["query"].(map[string]interface{})["bool"].(map[string]interface{})
	should := boolQuery["should"].([]map[string]interface{})
	require.Len(t, should, 1)

	match := should[0]["match"].(map[string]interface{})[FieldProductName].(map[string]interface{})
	assert.Equal(t, "chim bồ câu", match["query"])
	assert.Equal(t, 2, match["fuzziness"])
	assert.Equal(t, 3, match["prefix_length"])
	assert.Equal(t, 20, match["max_expansions"])

	assert.Equal(t, 1, boolQuery["minimum_should_match"])
	assert.Equal(t, 0.1, body["min_score"])
	assert.Equal(t, 100, body["size"])
}

func TestBuildRegexAndExactFilters(t *testing.T) {
	g := NewGenerator(testPipelineConfig())

	body := g.Build(SearchSnippet{
		RegexSearch: map[string]string{FieldHSCode: "^8471"},
		ExactMatch:  map[string]string{FieldDirection: "nhập"},
	})

	boolQuery := body["query"].(map[string]interface{})["bool"].(map[string]interface{})
	filter := boolQuery["filter"].([]map[string]interface{})
	require.Len(t, filter, 2)

	regexp := filter[0]["regexp"].(map[string]interface{})[FieldHSCode].(map[string]interface{})
	assert.Equal(t, "^8471", regexp["value"])
	assert.Equal(t, true, regexp["case_insensitive"])

	term := filter[1]["term"].(map[string]interface{})
	assert.Equal(t, "nhập", term[FieldDirection])

	_, hasMinScore := body["min_score"]
	assert.False(t, hasMinScore)
	assert.Equal(t, 20, body["size"])
}

func TestBuildBareDateCoversWholeDay(t *testing.T) {
	g := NewGenerator(testPipelineConfig())

	body := g.Build(SearchSnippet{
		ExactMatch: map[string]string{FieldDate: "2024-03-15"},
	})

	boolQuery := body["query"].(map[string]interface{})["bool"].(map[string]interface{})
	filter := boolQuery["filter"].([]map[string]interface{})
	require.Len(t, filter, 1)

	rng := filter[0]["range"].(map[string]interface{})[FieldDate].(map[string]interface{})
	assert.Equal(t, "2024-03-15T00:00:00", rng["gte"])
	assert.Equal(t, "2024-03-15T23:59:59", rng["lte"])
}

func TestBuildRangeSupersedesExactDate(t *testing.T) {
	g := NewGenerator(testPipelineConfig())

	body := g.Build(SearchSnippet{
		ExactMatch: map[string]string{FieldDate: "2024-03-15"},
		RangeQueries: RangeQueries{
			Date: &DateRange{StartDate: "2024-01-01", EndDate: "2024-01-31"},
		},
	})

	boolQuery := body["query"].(map[string]interface{})["bool"].(map[string]interface{})
	filter := boolQuery["filter"].([]map[string]interface{})
	require.Len(t, filter, 1)

	rng := filter[0]["range"].(map[string]interface{})[FieldDate].(map[string]interface{})
	assert.Equal(t, "2024-01-01T00:00:00", rng["gte"])
	assert.Equal(t, "2024-01-31T23:59:59", rng["lte"])
}

func TestBuildEmptySnippetMatchesAll(t *testing.T) {
	g := NewGenerator(testPipelineConfig())

	body := g.Build(SearchSnippet{})
	boolQuery := body["query"].(map[string]interface{})["bool"].(map[string]interface{})
	must := boolQuery["must"].([]map[string]interface{})
	require.Len(t, must, 1)
	assert.Contains(t, must[0], "match_all")
}

func TestBuildProjectionAllowList(t *testing.T) {
	g := NewGenerator(testPipelineConfig())

	body := g.Build(SearchSnippet{})
	source := body["_source"].(map[string]interface{})
	assert.ElementsMatch(t, projectedFields, source["includes"])
}

func TestUsedFields(t *testing.T) {
	fields := UsedFields(SearchSnippet{
		FuzzySearch: map[string]string{FieldProductName: "chim", FieldOrigin: ""},
		RegexSearch: map[string]string{FieldHSCode: "^01"},
		RangeQueries: RangeQueries{
			Date: &DateRange{StartDate: "2024-01-01", EndDate: "2024-01-31"},
		},
	})
	assert.Equal(t, []string{FieldHSCode, FieldDate, FieldProductName}, fields)
}
