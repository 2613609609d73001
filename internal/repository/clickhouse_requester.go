package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	"TickChart/internal/domain/models"
	domrepo "TickChart/internal/domain/repository"
	applogger "TickChart/pkg/logger"
)

var tableNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// ClickHouseRequester reads the latest trading day of raw ticks for an
// identifier from a ClickHouse table with columns (ts, symbol, price, volume).
type ClickHouseRequester struct {
	db        *sql.DB
	table     string
	defaultID models.Identifier
	loc       *time.Location
	l         *applogger.Logger
}

func NewClickHouseRequester(db *sql.DB, table string, defaultID models.Identifier, loc *time.Location, l *applogger.Logger) (*ClickHouseRequester, error) {
	if !tableNameRe.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	if loc == nil {
		loc = time.UTC
	}
	if l == nil {
		l = applogger.NewNop()
	}
	return &ClickHouseRequester{db: db, table: table, defaultID: defaultID, loc: loc, l: l}, nil
}

type tickRow struct {
	ts     time.Time
	price  float64
	volume float64
}

func (r *ClickHouseRequester) latestDayQuery() string {
	return fmt.Sprintf(`
        SELECT ts, price, volume
        FROM %[1]s
        WHERE symbol = ?
          AND ts >= (SELECT toStartOfDay(max(ts)) FROM %[1]s WHERE symbol = ?)
        ORDER BY ts ASC
    `, r.table)
}

func (r *ClickHouseRequester) RequestData(ctx context.Context, args domrepo.RequestArgs) (*models.RawPayload, error) {
	id := args.Identifier
	if id == "" {
		id = r.defaultID
	}
	if id == "" {
		return nil, errors.New("clickhouse source: identifier required")
	}

	start := time.Now()
	rows, err := r.db.QueryContext(ctx, r.latestDayQuery(), id.String(), id.String())
	if err != nil {
		r.l.Error("clickhouse ticks query error",
			applogger.String("table", r.table),
			applogger.String("identifier", id.String()),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("query ticks: %w", err)
	}
	defer rows.Close()

	out := make([]tickRow, 0, 4096)
	for rows.Next() {
		var tr tickRow
		if err := rows.Scan(&tr.ts, &tr.price, &tr.volume); err != nil {
			return nil, fmt.Errorf("scan tick: %w", err)
		}
		out = append(out, tr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	r.l.Debug("clickhouse ticks ok",
		applogger.String("table", r.table),
		applogger.String("identifier", id.String()),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return rowsToPayload(id, out, r.loc), nil
}

// rowsToPayload renders rows in the same shape the tool endpoint returns, so
// both sources go through one normalization path.
func rowsToPayload(id models.Identifier, rows []tickRow, loc *time.Location) *models.RawPayload {
	items := make([]*models.RawTick, 0, len(rows))
	for _, tr := range rows {
		local := tr.ts.In(loc)
		items = append(items, &models.RawTick{
			Date:       models.FlexString(local.Format("2006-01-02")),
			TimeOfDay:  models.FlexString(local.Format("15:04:05")),
			Identifier: id,
			Price:      models.NewDecimal(tr.price),
			Volume:     models.NewDecimal(tr.volume),
		})
	}
	return &models.RawPayload{Identifier: id, Count: len(items), Items: items}
}
