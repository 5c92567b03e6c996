package index

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Store persists chunks and symbols in sqlite. Single writer; WAL mode
// keeps concurrent readers cheap.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the store at dbPath.
func NewStore(ctx context.Context, dbPath string) (*Store, error) {
	dsn := dbPath + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open index store: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping index store: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize index schema: %w", err)
	}
	return s, nil
}

// Close releases the connection.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS chunks (
		chunk_id   TEXT PRIMARY KEY,
		path       TEXT NOT NULL,
		lang       TEXT NOT NULL,
		start_line INTEGER NOT NULL,
		end_line   INTEGER NOT NULL,
		content    TEXT NOT NULL,
		symbol     TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_path ON chunks(path);

	CREATE TABLE IF NOT EXISTS symbols (
		symbol_id  TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		kind       TEXT NOT NULL,
		path       TEXT NOT NULL,
		start_line INTEGER NOT NULL,
		end_line   INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_symbols_name ON symbols(name);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// ReplaceFile swaps a file's chunks and symbols in one transaction.
func (s *Store) ReplaceFile(ctx context.Context, path string, chunks []Chunk, symbols []Symbol) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE path = ?`, path); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM symbols WHERE path = ?`, path); err != nil {
		return err
	}
	for _, c := range chunks {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO chunks (chunk_id, path, lang, start_line, end_line, content, symbol)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			c.ChunkID, c.Path, string(c.Lang), c.StartLine, c.EndLine, c.Content, c.Symbol); err != nil {
			return err
		}
	}
	for _, sym := range symbols {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO symbols (symbol_id, name, kind, path, start_line, end_line)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			sym.SymbolID, sym.Name, sym.Kind, sym.Path, sym.StartLine, sym.EndLine); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// DeleteFile removes a file's chunks and symbols.
func (s *Store) DeleteFile(ctx context.Context, path string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM chunks WHERE path = ?`, path); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM symbols WHERE path = ?`, path)
	return err
}

// GetChunk fetches one chunk by id.
func (s *Store) GetChunk(ctx context.Context, chunkID string) (Chunk, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT chunk_id, path, lang, start_line, end_line, content, symbol
		 FROM chunks WHERE chunk_id = ?`, chunkID)
	var c Chunk
	var lang string
	var symbol sql.NullString
	if err := row.Scan(&c.ChunkID, &c.Path, &lang, &c.StartLine, &c.EndLine, &c.Content, &symbol); err != nil {
		return Chunk{}, err
	}
	c.Lang = Language(lang)
	c.Symbol = symbol.String
	return c, nil
}

// SymbolsByName returns symbols matching name exactly.
func (s *Store) SymbolsByName(ctx context.Context, name string) ([]Symbol, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT symbol_id, name, kind, path, start_line, end_line
		 FROM symbols WHERE name = ? ORDER BY path, start_line`, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Symbol
	for rows.Next() {
		var sym Symbol
		if err := rows.Scan(&sym.SymbolID, &sym.Name, &sym.Kind, &sym.Path, &sym.StartLine, &sym.EndLine); err != nil {
			return nil, err
		}
		out = append(out, sym)
	}
	return out, rows.Err()
}

// ChunkAt returns the chunk covering a file line, if any.
func (s *Store) ChunkAt(ctx context.Context, path string, line int) (Chunk, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT chunk_id, path, lang, start_line, end_line, content, symbol
		 FROM chunks WHERE path = ? AND start_line <= ? AND end_line >= ?
		 ORDER BY start_line LIMIT 1`, path, line, line)
	var c Chunk
	var lang string
	var symbol sql.NullString
	err := row.Scan(&c.ChunkID, &c.Path, &lang, &c.StartLine, &c.EndLine, &c.Content, &symbol)
	if err == sql.ErrNoRows {
		return Chunk{}, false, nil
	}
	if err != nil {
		return Chunk{}, false, err
	}
	c.Lang = Language(lang)
	c.Symbol = symbol.String
	return c, true, nil
}

// ChunksByPath returns a file's chunks in order.
func (s *Store) ChunksByPath(ctx context.Context, path string) ([]Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT chunk_id, path, lang, start_line, end_line, content, symbol
		 FROM chunks WHERE path = ? ORDER BY start_line`, path)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Chunk
	for rows.Next() {
		var c Chunk
		var lang string
		var symbol sql.NullString
		if err := rows.Scan(&c.ChunkID, &c.Path, &lang, &c.StartLine, &c.EndLine, &c.Content, &symbol); err != nil {
			return nil, err
		}
		c.Lang = Language(lang)
		c.Symbol = symbol.String
		out = append(out, c)
	}
	return out, rows.Err()
}
