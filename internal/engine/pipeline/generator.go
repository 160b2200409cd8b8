package pipeline

import (
	"sort"
	"strings"

	"trade-assistant/internal/common/config"
)

// Generator deterministically translates a validated search snippet into an
// Elasticsearch query body.
type Generator struct {
	cfg config.PipelineConfig
}

func NewGenerator(cfg config.PipelineConfig) *Generator {
	return &Generator{cfg: cfg}
}

// Build renders the snippet as a bool query. Fuzzy fields become scored
// should clauses with edit-distance tolerance; regex, exact, and range fields
// become filters. The absolute score floor is applied server-side via
// min_score; the relative threshold is applied client-side by the searcher.
func (g *Generator) Build(snippet SearchSnippet) map[string]interface{} {
	var should []map[string]interface{}
	for _, field := range sortedKeys(snippet.FuzzySearch) {
		value := snippet.FuzzySearch[field]
		if value == "" {
			continue
		}
		should = append(should, map[string]interface{}{
			"match": map[string]interface{}{
				field: map[string]interface{}{
					"query":          value,
					"fuzziness":      g.cfg.MaxEdits,
					"prefix_length":  g.cfg.PrefixLength,
					"max_expansions": g.cfg.MaxExpansions,
				},
			},
		})
	}

	var filter []map[string]interface{}
	for _, field := range sortedKeys(snippet.RegexSearch) {
		pattern := snippet.RegexSearch[field]
		if pattern == "" {
			continue
		}
		filter = append(filter, map[string]interface{}{
			"regexp": map[string]interface{}{
				field: map[string]interface{}{
					"value":            pattern,
					"case_insensitive": true,
				},
			},
		})
	}

	dateRanged := snippet.RangeQueries.Date != nil
	for _, field := range sortedKeys(snippet.ExactMatch) {
		value := snippet.ExactMatch[field]
		if value == "" {
			continue
		}
		// A range on the date axis supersedes an exact date.
		if field == FieldDate {
			if dateRanged {
				continue
			}
			filter = append(filter, dateFilter(value))
			continue
		}
		filter = append(filter, map[string]interface{}{
			"term": map[string]interface{}{field: value},
		})
	}

	if dateRanged {
		filter = append(filter, rangeFilter(*snippet.RangeQueries.Date))
	}

	boolQuery := map[string]interface{}{}
	if len(should) > 0 {
		boolQuery["should"] = should
		boolQuery["minimum_should_match"] = 1
	}
	if len(filter) > 0 {
		boolQuery["filter"] = filter
	}
	if len(boolQuery) == 0 {
		boolQuery["must"] = []map[string]interface{}{
			{"match_all": map[string]interface{}{}},
		}
	}

	body := map[string]interface{}{
		"query":   map[string]interface{}{"bool": boolQuery},
		"size":    g.fetchWindow(len(should) > 0),
		"_source": map[string]interface{}{"includes": projectedFields},
	}
	if len(should) > 0 {
		body["min_score"] = g.cfg.PreFilterThreshold
	}
	return body
}

// fetchWindow oversizes the scored page so the client-side relative filter
// runs before the result cap, not after it.
func (g *Generator) fetchWindow(scored bool) int {
	if !scored {
		return g.cfg.ResultLimit
	}
	return g.cfg.ResultLimit * 5
}

// dateFilter covers the whole calendar day for a bare "YYYY-MM-DD" value and
// matches exactly when a time component is present.
func dateFilter(value string) map[string]interface{} {
	if strings.Contains(value, "T") {
		return map[string]interface{}{
			"term": map[string]interface{}{FieldDate: value},
		}
	}
	return map[string]interface{}{
		"range": map[string]interface{}{
			FieldDate: map[string]interface{}{
				"gte": value + "T00:00:00",
				"lte": value + "T23:59:59",
			},
		},
	}
}

func rangeFilter(r DateRange) map[string]interface{} {
	start := r.StartDate
	end := r.EndDate
	if !strings.Contains(start, "T") {
		start += "T00:00:00"
	}
	if !strings.Contains(end, "T") {
		end += "T23:59:59"
	}
	return map[string]interface{}{
		"range": map[string]interface{}{
			FieldDate: map[string]interface{}{"gte": start, "lte": end},
		},
	}
}

// UsedFields lists the canonical fields the snippet actually referenced,
// sorted for stable output.
func UsedFields(snippet SearchSnippet) []string {
	seen := make(map[string]struct{})
	collect := func(m map[string]string) {
		for field, value := range m {
			if value != "" {
				seen[field] = struct{}{}
			}
		}
	}
	collect(snippet.FuzzySearch)
	collect(snippet.RegexSearch)
	collect(snippet.ExactMatch)
	if snippet.RangeQueries.Date != nil {
		seen[FieldDate] = struct{}{}
	}

	fields := make([]string, 0, len(seen))
	for f := range seen {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
