// Package synth turns resolved query dimensions into a validated filter and
// executes it against the structured store.
package synth

import (
	"context"
	"fmt"
	"time"

	stderrors "trade-assistant/internal/common/errors"
	"trade-assistant/internal/common/logger"
	"trade-assistant/internal/models"
)

const dateLayout = "2006-01-02"

// Dimensions carries the raw per-turn query dimensions before filter
// synthesis. All fields are optional; dates are ISO "YYYY-MM-DD" strings.
type Dimensions struct {
	Code      string `json:"code,omitempty"`
	Supplier  string `json:"supplier,omitempty"`
	Date      string `json:"date,omitempty"`
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
	Direction string `json:"direction,omitempty"`
}

// Store executes validated filters against the trade-declaration table.
type Store interface {
	Query(ctx context.Context, filter models.QueryFilter) ([]models.TradeRecord, error)
	Count(ctx context.Context, filter models.QueryFilter) (int, error)
}

// Synthesizer builds and runs structured queries.
type Synthesizer struct {
	store  Store
	logger logger.Logger
}

func New(store Store, log logger.Logger) *Synthesizer {
	return &Synthesizer{
		store:  store,
		logger: log.WithFields(map[string]interface{}{"component": "synth"}),
	}
}

// ParseFilter converts raw dimensions into a validated QueryFilter.
func ParseFilter(dims Dimensions) (models.QueryFilter, error) {
	filter := models.QueryFilter{
		Code:      dims.Code,
		Supplier:  dims.Supplier,
		Direction: models.ParseDirection(dims.Direction),
	}

	var err error
	if filter.Date, err = parseDate(dims.Date, "date"); err != nil {
		return models.QueryFilter{}, err
	}
	if filter.DateStart, err = parseDate(dims.StartDate, "start_date"); err != nil {
		return models.QueryFilter{}, err
	}
	if filter.DateEnd, err = parseDate(dims.EndDate, "end_date"); err != nil {
		return models.QueryFilter{}, err
	}

	if err := filter.Validate(); err != nil {
		return models.QueryFilter{}, err
	}
	return filter, nil
}

func parseDate(value, name string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q: expected YYYY-MM-DD", name, value)
	}
	return &t, nil
}

// Execute runs the filter and returns the matching records.
func (s *Synthesizer) Execute(ctx context.Context, filter models.QueryFilter) ([]models.TradeRecord, error) {
	records, err := s.store.Query(ctx, filter)
	if err != nil {
		s.logger.Error("structured query failed", map[string]interface{}{"error": err.Error()})
		if stderrors.CodeOf(err) != "" {
			return nil, err
		}
		return nil, stderrors.NewQueryExecutionFailedError(err)
	}

	s.logger.Debug("structured query executed", map[string]interface{}{
		"code":     filter.Code,
		"supplier": filter.Supplier,
		"rows":     len(records),
	})
	return records, nil
}

// Cardinality returns the result-set size for the filter without fetching
// the rows.
func (s *Synthesizer) Cardinality(ctx context.Context, filter models.QueryFilter) (int, error) {
	count, err := s.store.Count(ctx, filter)
	if err != nil {
		if stderrors.CodeOf(err) != "" {
			return 0, err
		}
		return 0, stderrors.NewQueryExecutionFailedError(err)
	}
	return count, nil
}
