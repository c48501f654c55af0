package symbols

import (
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// SQLite data files carry two tables:
//
//	symbols(name TEXT, kind TEXT, dim INTEGER)
//	records(symbol TEXT, pos INTEGER, idx TEXT, value REAL)
//
// kind is one of set, parameter, variable, equation. idx is the
// comma-separated element tuple of a record; pos orders the records.
const (
	sqlSymbols = `SELECT name, kind, dim FROM symbols ORDER BY rowid`
	sqlRecords = `SELECT idx, value FROM records WHERE symbol = ? ORDER BY pos`
)

// SQLiteSchema creates the tables a data file needs.
const SQLiteSchema = `
CREATE TABLE IF NOT EXISTS symbols (name TEXT PRIMARY KEY, kind TEXT NOT NULL, dim INTEGER NOT NULL);
CREATE TABLE IF NOT EXISTS records (symbol TEXT NOT NULL, pos INTEGER NOT NULL, idx TEXT NOT NULL, value REAL NOT NULL DEFAULT 0);
`

type sqlSymbol struct {
	name string
	kind string
	dim  int
}

// LoadSQLite reads a SQLite data file into s.
func LoadSQLite(s *Store, path string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer db.Close()
	return ReadSQLite(s, db)
}

// ReadSQLite merges the symbols of an open database into s.
func ReadSQLite(s *Store, db *sql.DB) error {
	rows, err := db.Query(sqlSymbols)
	if err != nil {
		return fmt.Errorf("failed to list symbols: %w", err)
	}
	var syms []sqlSymbol
	for rows.Next() {
		var sym sqlSymbol
		if err := rows.Scan(&sym.name, &sym.kind, &sym.dim); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan symbol: %w", err)
		}
		syms = append(syms, sym)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	for _, sym := range syms {
		records, values, err := readSQLRecords(db, sym)
		if err != nil {
			return err
		}
		switch strings.ToLower(sym.kind) {
		case "set":
			_, err = s.AddSet(sym.name, sym.dim, records)
		case "parameter", "param":
			_, err = s.AddParam(sym.name, sym.dim, records, values)
		case "variable", "var":
			_, err = s.AddVar(sym.name, sym.dim, records)
		case "equation", "equ":
			_, err = s.AddEqu(sym.name, sym.dim, records)
		default:
			err = fmt.Errorf("symbol %s: unknown kind %q", sym.name, sym.kind)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func readSQLRecords(db *sql.DB, sym sqlSymbol) ([][]string, []float64, error) {
	rows, err := db.Query(sqlRecords, sym.name)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read records of %s: %w", sym.name, err)
	}
	defer rows.Close()

	var records [][]string
	var values []float64
	for rows.Next() {
		var idx string
		var value float64
		if err := rows.Scan(&idx, &value); err != nil {
			return nil, nil, fmt.Errorf("failed to scan record of %s: %w", sym.name, err)
		}
		var tuple []string
		if idx != "" {
			tuple = strings.Split(idx, ",")
			for i := range tuple {
				tuple[i] = strings.TrimSpace(tuple[i])
			}
		} else {
			tuple = []string{}
		}
		records = append(records, tuple)
		values = append(values, value)
	}
	return records, values, rows.Err()
}

// WriteSQLite stores the given data into db using SQLiteSchema. It is the
// inverse of ReadSQLite and is used to convert YAML data files.
func WriteSQLite(db *sql.DB, f *DataFile) error {
	if _, err := db.Exec(SQLiteSchema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	insertSym := func(name, kind string, dim int) error {
		_, err := tx.Exec(`INSERT INTO symbols (name, kind, dim) VALUES (?, ?, ?)`, name, kind, dim)
		return err
	}
	insertRec := func(sym string, pos int, idx []string, value float64) error {
		_, err := tx.Exec(`INSERT INTO records (symbol, pos, idx, value) VALUES (?, ?, ?, ?)`,
			sym, pos, strings.Join(idx, ","), value)
		return err
	}

	err = func() error {
		for _, set := range f.Sets {
			records := set.Records
			for _, el := range set.Elements {
				records = append(records, []string{el})
			}
			dim := set.Dim
			if dim == 0 && len(records) > 0 {
				dim = len(records[0])
			}
			if err := insertSym(set.Name, "set", dim); err != nil {
				return err
			}
			for i, r := range records {
				if err := insertRec(set.Name, i, r, 0); err != nil {
					return err
				}
			}
		}
		for _, p := range f.Parameters {
			if p.Value != nil {
				if err := insertSym(p.Name, "parameter", 0); err != nil {
					return err
				}
				if err := insertRec(p.Name, 0, nil, *p.Value); err != nil {
					return err
				}
				continue
			}
			dim := p.Dim
			if dim == 0 && len(p.Records) > 0 {
				dim = len(p.Records[0].Index)
			}
			if err := insertSym(p.Name, "parameter", dim); err != nil {
				return err
			}
			for i, r := range p.Records {
				if err := insertRec(p.Name, i, r.Index, r.Value); err != nil {
					return err
				}
			}
		}
		for _, group := range []struct {
			kind string
			rows []RowData
		}{{"variable", f.Variables}, {"equation", f.Equations}} {
			for _, r := range group.rows {
				if len(r.Domain) > 0 {
					return fmt.Errorf("%s %s: domain expansion needs a store; list records explicitly", group.kind, r.Name)
				}
				records := r.Records
				dim := r.Dim
				if dim == 0 && len(records) > 0 {
					dim = len(records[0])
				}
				if err := insertSym(r.Name, group.kind, dim); err != nil {
					return err
				}
				if dim == 0 && len(records) == 0 {
					records = [][]string{{}}
				}
				for i, rec := range records {
					if err := insertRec(r.Name, i, rec, 0); err != nil {
						return err
					}
				}
			}
		}
		return nil
	}()
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to write data: %w", err)
	}
	return tx.Commit()
}
