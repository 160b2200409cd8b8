// Package planner decides the response shape for a structured-path turn:
// full detail, date/supplier summary, disambiguation, or no-match.
package planner

import (
	"sort"
	"time"

	"trade-assistant/internal/common/metrics"
	"trade-assistant/internal/models"
)

// PlanKind tags the active ResponsePlan variant.
type PlanKind string

const (
	KindDetail         PlanKind = "detail"
	KindSummary        PlanKind = "summary"
	KindDisambiguation PlanKind = "disambiguation"
	KindEmpty          PlanKind = "empty"
)

// DateGroup is one summary row: a declaration date and the distinct supplier
// set seen on that date, sorted alphabetically.
type DateGroup struct {
	Date      time.Time
	Suppliers []string
}

// Plan is the tagged decision produced once per structured turn. Exactly one
// variant is active, selected by Kind.
type Plan struct {
	Kind PlanKind

	// Detail
	Records []models.TradeRecord

	// Disambiguation and Empty both name the dimension that triggered them.
	Dimension  string
	Candidates []string

	// Summary
	Groups []DateGroup
	Total  int
}

// Planner applies the cardinality threshold between detail and summary plans.
type Planner struct {
	detailThreshold int
}

func New(detailThreshold int) *Planner {
	return &Planner{detailThreshold: detailThreshold}
}

// PlanForCandidates maps a resolution outcome straight to a terminal plan
// when resolution alone decides the turn. It returns ok=false when the
// dimension resolved cleanly and planning must continue to query execution.
func (p *Planner) PlanForCandidates(dimension string, set models.EntityCandidateSet) (Plan, bool) {
	if set.Empty() {
		metrics.PlanOutcomes.WithLabelValues(string(KindEmpty)).Inc()
		return Plan{Kind: KindEmpty, Dimension: dimension}, true
	}
	if set.Ambiguous() {
		metrics.PlanOutcomes.WithLabelValues(string(KindDisambiguation)).Inc()
		return Plan{
			Kind:       KindDisambiguation,
			Dimension:  dimension,
			Candidates: set.Candidates,
		}, true
	}
	return Plan{}, false
}

// PlanForRecords chooses between empty, detail, and summary from an executed
// result set. The threshold is inclusive: exactly threshold rows still render
// in full detail.
func (p *Planner) PlanForRecords(records []models.TradeRecord) Plan {
	var plan Plan
	switch {
	case len(records) == 0:
		plan = Plan{Kind: KindEmpty}
	case len(records) <= p.detailThreshold:
		plan = Plan{Kind: KindDetail, Records: records}
	default:
		plan = Plan{Kind: KindSummary, Groups: groupByDate(records), Total: len(records)}
	}
	metrics.PlanOutcomes.WithLabelValues(string(plan.Kind)).Inc()
	return plan
}

// groupByDate collects the distinct supplier set per declaration date, dates
// ascending and suppliers alphabetical within each date. Rows without a date
// or supplier cannot be grouped and are skipped.
func groupByDate(records []models.TradeRecord) []DateGroup {
	byDate := make(map[time.Time]map[string]struct{})
	for _, r := range records {
		if r.Date == nil || r.Supplier == "" {
			continue
		}
		day := time.Date(r.Date.Year(), r.Date.Month(), r.Date.Day(), 0, 0, 0, 0, r.Date.Location())
		if byDate[day] == nil {
			byDate[day] = make(map[string]struct{})
		}
		byDate[day][r.Supplier] = struct{}{}
	}

	groups := make([]DateGroup, 0, len(byDate))
	for day, suppliers := range byDate {
		names := make([]string, 0, len(suppliers))
		for s := range suppliers {
			names = append(names, s)
		}
		sort.Strings(names)
		groups = append(groups, DateGroup{Date: day, Suppliers: names})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Date.Before(groups[j].Date) })
	return groups
}
