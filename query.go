package pgsafe

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"net"
	"net/netip"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	pg_query "github.com/pganalyze/pg_query_go/v6"

	"github.com/rickchristie/pgsafe-mcp/internal/statement"
)

// Query validates and executes sql, returning only QueryOutput.
// All errors (validation rejections, Postgres errors, Go errors) are
// converted to output.Error, so callers never need to check a Go error.
//
// With writes allowed, the SQL text that passes validation is sent to
// PostgreSQL unmodified over the simple query protocol, so multi-statement
// queries run as one batch. Otherwise see execReadOnly.
func (p *PgSafe) Query(ctx context.Context, input QueryInput) *QueryOutput {
	startTime := time.Now()
	sql := input.SQL

	// 1. Acquire semaphore (respects context cancellation to prevent deadlock)
	if err := p.acquireSlot(ctx, "Query"); err != nil {
		return p.handleError(err)
	}
	defer p.releaseSlot()

	// 2. Check SQL length before any scanning
	if len(sql) > p.config.Query.MaxSQLLength {
		return p.handleError(fmt.Errorf("SQL query too long: %d bytes exceeds maximum of %d bytes", len(sql), p.config.Query.MaxSQLLength))
	}

	// 3. Statement classification
	if err := p.validator.Validate(sql); err != nil {
		return p.handleError(err)
	}

	// 4. Determine timeout
	timeout, timeoutRule := p.timeoutMgr.Resolve(sql)
	queryCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// 5. Acquire connection and execute
	conn, err := p.pool.Acquire(queryCtx)
	if err != nil {
		return p.handleError(err)
	}
	defer conn.Release()

	var results []*pgconn.Result
	if p.validator.AllowsWrites() {
		results, err = readAll(conn.Conn().PgConn().Exec(queryCtx, sql))
	} else {
		results, err = execReadOnly(ctx, queryCtx, conn.Conn(), statement.Split(sql))
	}
	if err != nil {
		return p.handleError(err)
	}
	result, err := collectResults(conn.Conn().TypeMap(), results)
	if err != nil {
		return p.handleError(err)
	}

	// 6. Sanitize and truncate
	sanitized := p.sanitizer.HasRules()
	result.Rows = p.sanitizer.SanitizeRows(result.Rows)
	truncateIfNeeded(result, p.config.Query.MaxResultLength)

	// 7. Log successful execution
	logEvent := p.logger.Info().
		Str("sql", truncateForLog(sql, 200)).
		Dur("duration", time.Since(startTime)).
		Int("statements", result.Statements).
		Int("row_count", len(result.Rows)).
		Int64("rows_affected", result.RowsAffected)
	if fp, err := pg_query.Fingerprint(sql); err == nil {
		logEvent = logEvent.Str("fingerprint", fp)
	}
	if timeoutRule != "" {
		logEvent = logEvent.Str("timeout_rule", timeoutRule)
	}
	if sanitized {
		logEvent = logEvent.Bool("sanitized", true)
	}
	logEvent.Msg("query executed")

	return result
}

// execReadOnly runs each statement, unmodified, inside a READ ONLY
// transaction that is always rolled back. Statements go through the extended
// protocol, which refuses a statement text holding more than one command, so
// a SET or COMMIT hidden from the splitter (e.g. behind a dollar quote) fails
// instead of running. The rollback also discards session-level SETs.
//
// parentCtx is used for the rollback: queryCtx may already have expired.
func execReadOnly(parentCtx, queryCtx context.Context, conn *pgx.Conn, stmts []string) ([]*pgconn.Result, error) {
	tx, err := conn.BeginTx(queryCtx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("failed to begin read-only transaction: %w", err)
	}
	defer tx.Rollback(parentCtx)

	results := make([]*pgconn.Result, 0, len(stmts))
	for _, stmt := range stmts {
		r := readResult(conn.PgConn().ExecParams(queryCtx, stmt, nil, nil, nil, nil))
		if r.Err != nil {
			return nil, r.Err
		}
		results = append(results, r)
	}
	return results, nil
}

// readAll drains a simple-protocol batch.
func readAll(mrr *pgconn.MultiResultReader) ([]*pgconn.Result, error) {
	var results []*pgconn.Result
	for mrr.NextResult() {
		results = append(results, readResult(mrr.ResultReader()))
	}
	return results, mrr.Close()
}

// readResult is ResultReader.Read, except that the field descriptions are
// kept when the statement returns no rows.
func readResult(rr *pgconn.ResultReader) *pgconn.Result {
	r := &pgconn.Result{}
	for rr.NextRow() {
		values := rr.Values()
		row := make([][]byte, len(values))
		for i, v := range values {
			if v != nil {
				row[i] = append([]byte{}, v...)
			}
		}
		r.Rows = append(r.Rows, row)
	}
	if fds := rr.FieldDescriptions(); len(fds) > 0 {
		r.FieldDescriptions = append([]pgconn.FieldDescription(nil), fds...)
	}
	r.CommandTag, r.Err = rr.Close()
	return r
}

// collectResults picks the result to report from a simple-protocol batch: the
// last one that described columns, or the last one overall.
func collectResults(typeMap *pgtype.Map, results []*pgconn.Result) (*QueryOutput, error) {
	output := &QueryOutput{
		Columns:    []string{},
		Rows:       make([]map[string]interface{}, 0),
		Statements: len(results),
	}
	if len(results) == 0 {
		return output, nil
	}

	chosen := results[len(results)-1]
	for _, r := range results {
		if r.Err != nil {
			return nil, r.Err
		}
		if len(r.FieldDescriptions) > 0 {
			chosen = r
		}
	}

	fields := chosen.FieldDescriptions
	output.Columns = make([]string, len(fields))
	for i, fd := range fields {
		output.Columns[i] = fd.Name
	}
	for _, raw := range chosen.Rows {
		row := make(map[string]interface{}, len(fields))
		for i, fd := range fields {
			row[fd.Name] = decodeValue(typeMap, fd, raw[i])
		}
		output.Rows = append(output.Rows, row)
	}
	output.RowsAffected = chosen.CommandTag.RowsAffected()
	return output, nil
}

// decodeValue decodes one raw column value using the connection's type map.
// Types the map does not know are returned as their text representation.
func decodeValue(typeMap *pgtype.Map, fd pgconn.FieldDescription, raw []byte) interface{} {
	if raw == nil {
		return nil
	}
	if t, ok := typeMap.TypeForOID(fd.DataTypeOID); ok {
		v, err := t.Codec.DecodeValue(typeMap, fd.DataTypeOID, fd.Format, raw)
		if err == nil {
			return convertValue(v)
		}
	}
	if fd.Format == pgx.BinaryFormatCode {
		return base64.StdEncoding.EncodeToString(raw)
	}
	return string(raw)
}

// collectRows reads all rows from pgx.Rows (extended protocol) into a QueryOutput.
func collectRows(rows pgx.Rows) (*QueryOutput, error) {
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	columns := make([]string, len(fieldDescs))
	for i, fd := range fieldDescs {
		columns[i] = fd.Name
	}

	resultRows := make([]map[string]interface{}, 0)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			row[col] = convertValue(values[i])
		}
		resultRows = append(resultRows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &QueryOutput{Columns: columns, Rows: resultRows, RowsAffected: rows.CommandTag().RowsAffected()}, nil
}

// convertValue converts a decoded PostgreSQL value to a JSON-friendly Go type.
func convertValue(v interface{}) interface{} {
	switch val := v.(type) {
	case nil:
		return nil
	case time.Time:
		return val.Format(time.RFC3339Nano)
	case float32:
		return convertFloat(float64(val), val)
	case float64:
		return convertFloat(val, val)
	case netip.Prefix:
		return val.String()
	case netip.Addr:
		return val.String()
	case net.HardwareAddr:
		return val.String()
	case pgtype.Numeric:
		if !val.Valid {
			return nil
		}
		if val.NaN {
			return "NaN"
		}
		switch val.InfinityModifier {
		case pgtype.Infinity:
			return "Infinity"
		case pgtype.NegativeInfinity:
			return "-Infinity"
		}
		b, err := val.MarshalJSON()
		if err != nil {
			return nil
		}
		return string(b)
	case pgtype.Time:
		if !val.Valid {
			return nil
		}
		d := time.Duration(val.Microseconds) * time.Microsecond
		return time.Time{}.Add(d).Format("15:04:05.999999")
	case pgtype.Interval:
		if !val.Valid {
			return nil
		}
		return formatInterval(val)
	case [16]byte:
		// UUID
		return fmt.Sprintf("%x-%x-%x-%x-%x", val[0:4], val[4:6], val[6:8], val[8:10], val[10:16])
	case []byte:
		// bytea
		return base64.StdEncoding.EncodeToString(val)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = convertValue(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = convertValue(item)
		}
		return out
	default:
		return val
	}
}

// convertFloat maps NaN and infinities to strings; encoding/json rejects them.
func convertFloat(f float64, orig interface{}) interface{} {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	return orig
}

func formatInterval(val pgtype.Interval) string {
	var parts []string
	if years := val.Months / 12; years != 0 {
		parts = append(parts, fmt.Sprintf("%d year(s)", years))
	}
	if months := val.Months % 12; months != 0 {
		parts = append(parts, fmt.Sprintf("%d mon(s)", months))
	}
	if val.Days != 0 {
		parts = append(parts, fmt.Sprintf("%d day(s)", val.Days))
	}
	if val.Microseconds != 0 {
		parts = append(parts, (time.Duration(val.Microseconds) * time.Microsecond).String())
	}
	if len(parts) == 0 {
		return "0"
	}
	return strings.Join(parts, " ")
}

// handleError logs err and converts it into a QueryOutput. Matching error
// prompts are appended to the message.
func (p *PgSafe) handleError(err error) *QueryOutput {
	errMsg := err.Error()
	prompt, patterns := p.errPrompts.Prompt(errMsg)

	logEvent := p.logger.Error().Err(err)
	if len(patterns) > 0 {
		logEvent = logEvent.Strs("error_prompts", patterns)
	}
	logEvent.Msg("query error")

	if prompt != "" {
		errMsg = errMsg + "\n\n" + prompt
	}
	return &QueryOutput{Error: errMsg}
}

// truncateIfNeeded replaces rows with a truncated JSON preview when their
// encoding exceeds maxLen characters.
func truncateIfNeeded(output *QueryOutput, maxLen int) {
	jsonBytes, _ := json.Marshal(output.Rows)
	jsonStr := string(jsonBytes)
	if utf8.RuneCountInString(jsonStr) <= maxLen {
		return
	}
	runes := []rune(jsonStr)
	output.Rows = nil
	output.Error = string(runes[:maxLen]) + "...[truncated] Result is too long! Add limits in your query!"
}

// truncateForLog truncates a string for log output to avoid oversized log entries.
func truncateForLog(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	truncateAt := maxLen
	for truncateAt > 0 && !utf8.RuneStart(s[truncateAt]) {
		truncateAt--
	}
	return s[:truncateAt] + "...[truncated]"
}
