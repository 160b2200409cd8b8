// Package postgres implements the structured trade-declaration store on
// PostgreSQL. It backs fuzzy entity resolution (distinct value listings),
// filter query execution, and the file ingestion operations.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	stderrors "trade-assistant/internal/common/errors"
	"trade-assistant/internal/common/logger"
	"trade-assistant/internal/models"
)

const tableName = "trade_declarations"

var recordColumns = []string{
	"declaration_date",
	"supplier_name",
	"hs_code",
	"product_name",
	"direction",
	"unit",
	"quantity",
	"origin_country",
	"delivery_term",
	"tax_import_export",
	"tax_special_consumption",
	"tax_vat",
	"tax_safeguard",
	"tax_environment",
	"source_file",
}

// Store provides read and ingestion access to the trade_declarations table.
type Store struct {
	db     *sql.DB
	logger logger.Logger
}

func NewStore(db *sql.DB, log logger.Logger) *Store {
	return &Store{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "postgres_store"}),
	}
}

// DistinctSuppliers returns every distinct supplier name in the dataset,
// ordered for deterministic resolver input.
func (s *Store) DistinctSuppliers(ctx context.Context) ([]string, error) {
	return s.distinctColumn(ctx, "supplier_name")
}

// DistinctCodes returns every distinct HS code in the dataset.
func (s *Store) DistinctCodes(ctx context.Context) ([]string, error) {
	return s.distinctColumn(ctx, "hs_code")
}

func (s *Store) distinctColumn(ctx context.Context, column string) ([]string, error) {
	query := fmt.Sprintf(
		"SELECT DISTINCT %s FROM %s WHERE %s IS NOT NULL AND %s <> '' ORDER BY %s",
		column, tableName, column, column, column,
	)

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, stderrors.NewQueryExecutionFailedError(err)
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, stderrors.NewQueryExecutionFailedError(err)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, stderrors.NewQueryExecutionFailedError(err)
	}
	return values, nil
}

// Query returns all records matching the filter's conjunction of dimensions.
// When the filter carries a date dimension the result is ordered by
// declaration date ascending.
func (s *Store) Query(ctx context.Context, filter models.QueryFilter) ([]models.TradeRecord, error) {
	if err := filter.Validate(); err != nil {
		return nil, stderrors.NewQueryExecutionFailedError(err)
	}

	where, args := buildWhere(filter)
	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(recordColumns, ", "), tableName)
	if where != "" {
		query += " WHERE " + where
	}
	if filter.HasDateDimension() {
		query += " ORDER BY declaration_date ASC"
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		s.logger.Error("filter query failed", map[string]interface{}{"error": err.Error()})
		return nil, stderrors.NewQueryExecutionFailedError(err)
	}
	defer rows.Close()

	var records []models.TradeRecord
	for rows.Next() {
		var (
			r         models.TradeRecord
			date      sql.NullTime
			supplier  sql.NullString
			hsCode    sql.NullString
			product   sql.NullString
			direction sql.NullString
			unit      sql.NullString
			quantity  sql.NullFloat64
			origin    sql.NullString
			term      sql.NullString
			taxIE     sql.NullFloat64
			taxSC     sql.NullFloat64
			taxVAT    sql.NullFloat64
			taxSG     sql.NullFloat64
			taxEnv    sql.NullFloat64
			source    sql.NullString
		)
		err := rows.Scan(
			&date, &supplier, &hsCode, &product, &direction, &unit, &quantity,
			&origin, &term, &taxIE, &taxSC, &taxVAT, &taxSG, &taxEnv, &source,
		)
		if err != nil {
			return nil, stderrors.NewQueryExecutionFailedError(err)
		}

		if date.Valid {
			d := date.Time
			r.Date = &d
		}
		r.Supplier = supplier.String
		r.HSCode = hsCode.String
		r.ProductName = product.String
		r.Direction = models.ParseDirection(direction.String)
		r.Unit = unit.String
		if quantity.Valid {
			q := quantity.Float64
			r.Quantity = &q
		}
		r.Origin = origin.String
		r.DeliveryTerm = term.String
		r.TaxImportExport = nullFloat(taxIE)
		r.TaxSpecialConsumption = nullFloat(taxSC)
		r.TaxVAT = nullFloat(taxVAT)
		r.TaxSafeguard = nullFloat(taxSG)
		r.TaxEnvironment = nullFloat(taxEnv)
		r.SourceFile = source.String

		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, stderrors.NewQueryExecutionFailedError(err)
	}
	return records, nil
}

// Count returns the cardinality of a filter's result set without fetching it.
func (s *Store) Count(ctx context.Context, filter models.QueryFilter) (int, error) {
	if err := filter.Validate(); err != nil {
		return 0, stderrors.NewQueryExecutionFailedError(err)
	}

	where, args := buildWhere(filter)
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", tableName)
	if where != "" {
		query += " WHERE " + where
	}

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, stderrors.NewQueryExecutionFailedError(err)
	}
	return count, nil
}

// buildWhere renders the filter's dimensions as an AND-joined predicate list.
// Bare dates cover the whole calendar day; ranges are inclusive of the end day.
func buildWhere(filter models.QueryFilter) (string, []interface{}) {
	var (
		predicates []string
		args       []interface{}
	)
	next := func() string { return fmt.Sprintf("$%d", len(args)+1) }

	if filter.Code != "" {
		predicates = append(predicates, "hs_code = "+next())
		args = append(args, filter.Code)
	}
	if filter.Supplier != "" {
		predicates = append(predicates, "supplier_name = "+next())
		args = append(args, filter.Supplier)
	}
	if filter.Direction != models.DirectionUnknown {
		predicates = append(predicates, "direction = "+next())
		args = append(args, string(filter.Direction))
	}
	if filter.Date != nil {
		day := truncateToDay(*filter.Date)
		predicates = append(predicates, "declaration_date >= "+next())
		args = append(args, day)
		predicates = append(predicates, "declaration_date < "+next())
		args = append(args, day.AddDate(0, 0, 1))
	}
	if filter.DateStart != nil && filter.DateEnd != nil {
		predicates = append(predicates, "declaration_date >= "+next())
		args = append(args, truncateToDay(*filter.DateStart))
		predicates = append(predicates, "declaration_date < "+next())
		args = append(args, truncateToDay(*filter.DateEnd).AddDate(0, 0, 1))
	}

	return strings.Join(predicates, " AND "), args
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

// BulkInsert writes a batch of ingested records in a single transaction.
// Either every record lands or none does.
func (s *Store) BulkInsert(ctx context.Context, records []models.TradeRecord) error {
	if len(records) == 0 {
		return nil
	}
	for i := range records {
		if err := records[i].Validate(); err != nil {
			return &stderrors.StandardError{
				Code:      stderrors.ErrCodeBulkInsertFailed,
				Message:   "Record validation failed before insert",
				Details:   fmt.Sprintf("record %d: %v", i, err),
				Retryable: false,
				Timestamp: time.Now().UTC(),
			}
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return bulkInsertError(err)
	}
	defer tx.Rollback()

	placeholders := make([]string, len(recordColumns))
	for i := range placeholders {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	insert := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		tableName, strings.Join(recordColumns, ", "), strings.Join(placeholders, ", "),
	)

	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return bulkInsertError(err)
	}
	defer stmt.Close()

	for _, r := range records {
		_, err := stmt.ExecContext(ctx,
			nullableTime(r.Date),
			r.Supplier,
			r.HSCode,
			r.ProductName,
			string(r.Direction),
			r.Unit,
			nullableFloat(r.Quantity),
			r.Origin,
			r.DeliveryTerm,
			nullableFloat(r.TaxImportExport),
			nullableFloat(r.TaxSpecialConsumption),
			nullableFloat(r.TaxVAT),
			nullableFloat(r.TaxSafeguard),
			nullableFloat(r.TaxEnvironment),
			r.SourceFile,
		)
		if err != nil {
			return bulkInsertError(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return bulkInsertError(err)
	}

	s.logger.Info("bulk insert committed", map[string]interface{}{
		"records": len(records),
		"source":  records[0].SourceFile,
	})
	return nil
}

// DeleteBySourceFile removes every record ingested from the given file and
// returns the number of rows deleted.
func (s *Store) DeleteBySourceFile(ctx context.Context, sourceFile string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE source_file = $1", tableName), sourceFile)
	if err != nil {
		return 0, &stderrors.StandardError{
			Code:      stderrors.ErrCodeBulkDeleteFailed,
			Message:   "Bulk delete by source file failed",
			Details:   err.Error(),
			Retryable: true,
			Timestamp: time.Now().UTC(),
		}
	}
	deleted, _ := res.RowsAffected()

	s.logger.Info("deleted records by source file", map[string]interface{}{
		"source":  sourceFile,
		"deleted": deleted,
	})
	return deleted, nil
}

func bulkInsertError(err error) *stderrors.StandardError {
	return &stderrors.StandardError{
		Code:      stderrors.ErrCodeBulkInsertFailed,
		Message:   "Bulk insert transaction failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

func nullableFloat(f *float64) interface{} {
	if f == nil {
		return nil
	}
	return *f
}
