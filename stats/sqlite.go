package stats

import (
	"database/sql"
	"fmt"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"

	"github.com/rs/xid"
	"github.com/tebeka/atexit"
)

// SQLiteWriter dumps a registry into a SQLite database so that runs can be
// compared with plain SQL afterwards.
type SQLiteWriter struct {
	*sql.DB

	registry *Registry
	dbName   string
}

// NewSQLiteWriter creates a writer for the given registry. If path is empty a
// unique database name is generated. The writer flushes when the process
// exits through atexit.
func NewSQLiteWriter(registry *Registry, path string) *SQLiteWriter {
	if path == "" {
		path = "memhier_" + xid.New().String() + ".sqlite3"
	}

	w := &SQLiteWriter{
		registry: registry,
		dbName:   path,
	}

	atexit.Register(func() { w.Flush() })

	return w
}

// Init establishes the database connection and creates the stats table.
func (w *SQLiteWriter) Init() {
	db, err := sql.Open("sqlite3", w.dbName)
	if err != nil {
		panic(err)
	}
	w.DB = db

	w.mustExecute(`
		CREATE TABLE IF NOT EXISTS stats (
			name TEXT PRIMARY KEY,
			value INTEGER,
			desc TEXT
		);
	`)
}

// Flush writes the current counter values, replacing earlier rows.
func (w *SQLiteWriter) Flush() {
	if w.DB == nil {
		return
	}

	w.mustExecute("BEGIN TRANSACTION")
	defer w.mustExecute("COMMIT TRANSACTION")

	stmt, err := w.Prepare(
		"INSERT OR REPLACE INTO stats (name, value, desc) VALUES (?, ?, ?)")
	if err != nil {
		panic(err)
	}
	defer stmt.Close()

	for _, s := range w.registry.All() {
		_, err := stmt.Exec(s.Name(), s.Value(), s.Desc())
		if err != nil {
			panic(fmt.Errorf("writing stat %s: %w", s.Name(), err))
		}
	}
}

func (w *SQLiteWriter) mustExecute(query string) sql.Result {
	res, err := w.Exec(query)
	if err != nil {
		panic(err)
	}
	return res
}
