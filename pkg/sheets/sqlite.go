package sheets

import (
	"database/sql"
	"strings"

	"github.com/go-faster/errors"
	_ "modernc.org/sqlite"
)

// SQLite keeps one table per sheet. Column order follows the header; row order is rowid order.
type SQLite struct{}

func (SQLite) Files(path string) ([]string, error) {
	return XLSX{}.Files(path)
}

func (SQLite) Read(path string) ([]Sheet, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer db.Close()

	names, err := tableNames(db)
	if err != nil {
		return nil, errors.Wrapf(err, "list tables %s", path)
	}
	out := make([]Sheet, 0, len(names))
	for _, name := range names {
		s, err := readTable(db, name)
		if err != nil {
			return nil, errors.Wrapf(err, "read %s[%s]", path, name)
		}
		out = append(out, s)
	}
	return out, nil
}

func (SQLite) Write(path string, sheets []Sheet) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer db.Close()

	tx, err := db.Begin()
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	for _, s := range sheets {
		if err := writeTable(tx, s); err != nil {
			_ = tx.Rollback()
			return errors.Wrapf(err, "write %s[%s]", path, s.Name)
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "commit")
	}
	return nil
}

func tableNames(db *sql.DB) ([]string, error) {
	rows, err := db.Query(`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

func readTable(db *sql.DB, name string) (Sheet, error) {
	rows, err := db.Query(`SELECT * FROM ` + quoteIdent(name) + ` ORDER BY rowid`)
	if err != nil {
		return Sheet{}, err
	}
	defer rows.Close()

	header, err := rows.Columns()
	if err != nil {
		return Sheet{}, err
	}
	s := Sheet{Name: name, Header: header}
	for rows.Next() {
		cells := make([]sql.NullString, len(header))
		dest := make([]any, len(header))
		for i := range cells {
			dest[i] = &cells[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return Sheet{}, err
		}
		row := make([]string, len(header))
		for i, c := range cells {
			row[i] = c.String
		}
		s.Rows = append(s.Rows, row)
	}
	return s, rows.Err()
}

func writeTable(tx *sql.Tx, s Sheet) error {
	if len(s.Header) == 0 {
		return errors.New("empty header")
	}
	if _, err := tx.Exec(`DROP TABLE IF EXISTS ` + quoteIdent(s.Name)); err != nil {
		return err
	}
	cols := make([]string, len(s.Header))
	marks := make([]string, len(s.Header))
	for i, h := range s.Header {
		cols[i] = quoteIdent(h) + " TEXT"
		marks[i] = "?"
	}
	if _, err := tx.Exec(`CREATE TABLE ` + quoteIdent(s.Name) + ` (` + strings.Join(cols, ", ") + `)`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT INTO ` + quoteIdent(s.Name) + ` VALUES (` + strings.Join(marks, ", ") + `)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, row := range s.Rows {
		args := make([]any, len(s.Header))
		for i := range args {
			args[i] = Cell(row, i)
		}
		if _, err := stmt.Exec(args...); err != nil {
			return err
		}
	}
	return nil
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
