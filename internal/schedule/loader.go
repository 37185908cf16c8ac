package schedule

import (
	"archive/zip"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"
)

// Loader ingests a zip-compressed GTFS archive into a Store. Each CSV
// member maps to the table named after the file; the header row is used
// verbatim as the column list and data rows are inserted positionally.
type Loader struct {
	logger *slog.Logger
}

func NewLoader(logger *slog.Logger) *Loader {
	return &Loader{
		logger: logger.With("component", "schedule_loader"),
	}
}

// Load ingests every CSV member of the archive into the store within a
// single transaction. A malformed member aborts the whole load.
func (l *Loader) Load(store *Store, reader *zip.Reader) error {
	totalStart := time.Now()
	l.logger.Info("starting schedule load", "files_in_archive", len(reader.File))

	tx, err := store.db.Begin()
	if err != nil {
		return fmt.Errorf("begin load transaction: %w", err)
	}
	defer tx.Rollback()

	for _, file := range reader.File {
		if file.FileInfo().IsDir() {
			continue
		}

		start := time.Now()
		rows, err := l.loadFile(tx, file)
		if err != nil {
			return fmt.Errorf("load %s: %w", file.Name, err)
		}

		l.logger.Info("loaded archive member",
			"name", file.Name,
			"rows", rows,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit load transaction: %w", err)
	}

	l.logger.Info("schedule load completed",
		"total_duration_ms", time.Since(totalStart).Milliseconds(),
	)
	return nil
}

func (l *Loader) loadFile(tx *sql.Tx, file *zip.File) (int, error) {
	rc, err := file.Open()
	if err != nil {
		return 0, err
	}
	defer rc.Close()

	r := csv.NewReader(rc)
	header, err := r.Read()
	if err != nil {
		return 0, fmt.Errorf("read header: %w", err)
	}
	if len(header) > 0 {
		// Warsaw archives ship with a UTF-8 BOM on the first cell.
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	stmt, err := tx.Prepare(insertQuery(tableName(file.Name), header))
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	args := make([]any, len(header))
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return inserted, fmt.Errorf("read row: %w", err)
		}

		// csv.Reader already rejects rows whose field count differs
		// from the header's.
		for i, v := range record {
			args[i] = v
		}
		if _, err := stmt.Exec(args...); err != nil {
			return inserted, fmt.Errorf("insert row: %w", err)
		}
		inserted++
	}

	return inserted, nil
}

func tableName(member string) string {
	base := path.Base(member)
	return strings.TrimSuffix(base, path.Ext(base))
}

func insertQuery(table string, columns []string) string {
	quoted := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = quoteIdent(col)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(table),
		strings.Join(quoted, ", "),
		placeholders,
	)
}

// Column names come straight from the archive header, so they are
// quoted as identifiers rather than interpolated bare.
func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
