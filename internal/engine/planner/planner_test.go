package planner

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trade-assistant/internal/models"
)

func makeRecords(n int) []models.TradeRecord {
	records := make([]models.TradeRecord, n)
	for i := range records {
		d := time.Date(2024, 3, 1+i%5, 0, 0, 0, 0, time.UTC)
		records[i] = models.TradeRecord{
			Date:     &d,
			Supplier: fmt.Sprintf("SUPPLIER %02d", i%3),
			HSCode:   "8471.30",
		}
	}
	return records
}

func TestPlanForCandidatesEmpty(t *testing.T) {
	p := New(20)

	plan, terminal := p.PlanForCandidates("supplier", models.NewEntityCandidateSet("acme", nil))
	require.True(t, terminal)
	assert.Equal(t, KindEmpty, plan.Kind)
	assert.Equal(t, "supplier", plan.Dimension)
}

func TestPlanForCandidatesAmbiguous(t *testing.T) {
	p := New(20)

	set := models.NewEntityCandidateSet("acme", []string{"ACME A", "ACME B"})
	plan, terminal := p.PlanForCandidates("supplier", set)
	require.True(t, terminal)
	assert.Equal(t, KindDisambiguation, plan.Kind)
	assert.Equal(t, []string{"ACME A", "ACME B"}, plan.Candidates)
}

func TestPlanForCandidatesResolvedContinues(t *testing.T) {
	p := New(20)

	set := models.NewEntityCandidateSet("acme", []string{"ACME A"})
	_, terminal := p.PlanForCandidates("supplier", set)
	assert.False(t, terminal)
}

func TestPlanForRecordsEmpty(t *testing.T) {
	p := New(20)
	plan := p.PlanForRecords(nil)
	assert.Equal(t, KindEmpty, plan.Kind)
}

func TestPlanForRecordsThresholdIsInclusive(t *testing.T) {
	p := New(20)

	atThreshold := p.PlanForRecords(makeRecords(20))
	assert.Equal(t, KindDetail, atThreshold.Kind)
	assert.Len(t, atThreshold.Records, 20)

	overThreshold := p.PlanForRecords(makeRecords(21))
	assert.Equal(t, KindSummary, overThreshold.Kind)
	assert.Empty(t, overThreshold.Records)
}

func TestSummaryGroupsSortedAndDeduplicated(t *testing.T) {
	p := New(1)

	d1 := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	records := []models.TradeRecord{
		{Date: &d1, Supplier: "ZETA CO"},
		{Date: &d1, Supplier: "ALPHA CO"},
		{Date: &d1, Supplier: "ZETA CO"},
		{Date: &d2, Supplier: "MID CO"},
	}

	plan := p.PlanForRecords(records)
	require.Equal(t, KindSummary, plan.Kind)
	require.Len(t, plan.Groups, 2)

	assert.Equal(t, d2, plan.Groups[0].Date)
	assert.Equal(t, []string{"MID CO"}, plan.Groups[0].Suppliers)
	assert.Equal(t, d1, plan.Groups[1].Date)
	assert.Equal(t, []string{"ALPHA CO", "ZETA CO"}, plan.Groups[1].Suppliers)
}

func TestSummarySkipsUngroupableRows(t *testing.T) {
	p := New(1)

	d := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	records := []models.TradeRecord{
		{Date: &d, Supplier: "ALPHA CO"},
		{Date: nil, Supplier: "NO DATE CO"},
		{Date: &d, Supplier: ""},
	}

	plan := p.PlanForRecords(records)
	require.Equal(t, KindSummary, plan.Kind)
	require.Len(t, plan.Groups, 1)
	assert.Equal(t, []string{"ALPHA CO"}, plan.Groups[0].Suppliers)
}
