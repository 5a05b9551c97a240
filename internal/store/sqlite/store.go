// Package sqlite persists the corpus and the answer history in a single
// SQLite database using the pure-Go modernc driver.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"ragqa/internal/domain"
	"ragqa/internal/ragerr"
	"ragqa/internal/store/sqlite/migrations"
)

var (
	_ domain.CorpusStore        = (*Store)(nil)
	_ domain.AnswerHistoryStore = (*Store)(nil)
)

// Store implements both CorpusStore and AnswerHistoryStore. It is safe for
// concurrent use; every connection in the pool enforces foreign keys.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens (or creates) the database file at path and applies pending
// migrations.
func NewStore(path string) (*Store, error) {
	if path == "" {
		return nil, ragerr.New(ragerr.CodeStoreInvalidInput, "database path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, ragerr.Errorf(ragerr.CodeStoreDatabaseFailure, "creating data directory: %w", err)
	}

	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, ragerr.Errorf(ragerr.CodeStoreDatabaseFailure, "opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, ragerr.Errorf(ragerr.CodeStoreDatabaseFailure, "pinging database: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.migrate(migrations.FS); err != nil {
		_ = db.Close()
		return nil, ragerr.Errorf(ragerr.CodeStoreDatabaseFailure, "running migrations: %w", err)
	}
	return s, nil
}

// Close closes the database connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning migration %s: %w", name, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_migrations(version) VALUES (?)`, version); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %s: %w", name, err)
		}
	}
	return nil
}

// ==================== Corpus ====================

func (s *Store) AppendRecord(ctx context.Context, rec domain.EmbeddingRecord) (int64, error) {
	if len(rec.Embedding) == 0 {
		return 0, ragerr.New(ragerr.CodeStoreInvalidInput, "record has no embedding", ragerr.FieldSource(rec.Source))
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO embeddings(source, text, dimension, embedding) VALUES (?, ?, ?, ?)`,
		rec.Source, rec.Text, len(rec.Embedding), encodeEmbedding(rec.Embedding),
	)
	if err != nil {
		return 0, ragerr.Wrap(err, ragerr.CodeStoreDatabaseFailure, "inserting embedding", ragerr.FieldSource(rec.Source))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, ragerr.Wrap(err, ragerr.CodeStoreDatabaseFailure, "reading embedding id")
	}
	return id, nil
}

// ListAll loads the whole corpus in insertion order.
func (s *Store) ListAll(ctx context.Context) ([]domain.EmbeddingRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, source, text, dimension, embedding FROM embeddings ORDER BY id`)
	if err != nil {
		return nil, ragerr.Wrap(err, ragerr.CodeStoreDatabaseFailure, "querying embeddings")
	}
	defer func() { _ = rows.Close() }()

	var out []domain.EmbeddingRecord
	for rows.Next() {
		var (
			rec  domain.EmbeddingRecord
			dim  int
			blob []byte
		)
		if err := rows.Scan(&rec.ID, &rec.Source, &rec.Text, &dim, &blob); err != nil {
			return nil, ragerr.Wrap(err, ragerr.CodeStoreDatabaseFailure, "scanning embedding")
		}
		rec.Embedding, err = decodeEmbedding(blob)
		if err != nil {
			return nil, ragerr.Wrap(err, ragerr.CodeStoreDatabaseFailure, "decoding embedding", ragerr.Field("record_id", rec.ID))
		}
		if len(rec.Embedding) != dim {
			return nil, ragerr.New(ragerr.CodeRetrievalDimensionMismatch,
				"stored embedding disagrees with its recorded dimension",
				ragerr.Field("record_id", rec.ID),
				ragerr.Field("want", dim),
				ragerr.Field("got", len(rec.Embedding)),
			)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, ragerr.Wrap(err, ragerr.CodeStoreDatabaseFailure, "iterating embeddings")
	}
	return out, nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM embeddings`).Scan(&n); err != nil {
		return 0, ragerr.Wrap(err, ragerr.CodeStoreDatabaseFailure, "counting embeddings")
	}
	return n, nil
}

// DeleteAll purges the corpus. Links referencing records go with them.
func (s *Store) DeleteAll(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM embeddings`); err != nil {
		return ragerr.Wrap(err, ragerr.CodeStoreDatabaseFailure, "deleting embeddings")
	}
	return nil
}

// ==================== Answer history ====================

func (s *Store) InsertQuestion(ctx context.Context, question, answer string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO questions(question, answer, created_at) VALUES (?, ?, ?)`,
		question, answer, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, ragerr.Wrap(err, ragerr.CodeStoreDatabaseFailure, "inserting question")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, ragerr.Wrap(err, ragerr.CodeStoreDatabaseFailure, "reading question id")
	}
	return id, nil
}

// InsertLinks records the ranked record IDs used for a question in one
// transaction. Unknown questions are NotFound; unknown records violate the
// foreign key and nothing is written.
func (s *Store) InsertLinks(ctx context.Context, questionID int64, recordIDs []int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ragerr.Wrap(err, ragerr.CodeStoreDatabaseFailure, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM questions WHERE id = ?`, questionID).Scan(&exists)
	if err != nil {
		return ragerr.Wrap(err, ragerr.CodeStoreDatabaseFailure, "checking question", ragerr.FieldQuestionID(questionID))
	}
	if exists == 0 {
		return ragerr.New(ragerr.CodeStoreNotFound, "question not found", ragerr.FieldQuestionID(questionID))
	}

	lookup, err := tx.PrepareContext(ctx, `SELECT COUNT(*) FROM embeddings WHERE id = ?`)
	if err != nil {
		return ragerr.Wrap(err, ragerr.CodeStoreDatabaseFailure, "preparing record lookup")
	}
	defer func() { _ = lookup.Close() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO question_embeddings(question_id, embedding_id, rank) VALUES (?, ?, ?)`)
	if err != nil {
		return ragerr.Wrap(err, ragerr.CodeStoreDatabaseFailure, "preparing link insert")
	}
	defer func() { _ = stmt.Close() }()

	for i, id := range recordIDs {
		var known int
		if err := lookup.QueryRowContext(ctx, id).Scan(&known); err != nil {
			return ragerr.Wrap(err, ragerr.CodeStoreDatabaseFailure, "checking record",
				ragerr.FieldQuestionID(questionID), ragerr.Field("record_id", id))
		}
		if known == 0 {
			return ragerr.New(ragerr.CodeStoreInvalidInput, "link references unknown record",
				ragerr.FieldQuestionID(questionID), ragerr.Field("record_id", id))
		}
		if _, err := stmt.ExecContext(ctx, questionID, id, i+1); err != nil {
			return ragerr.Wrap(err, ragerr.CodeStoreDatabaseFailure, "inserting link",
				ragerr.FieldQuestionID(questionID), ragerr.Field("record_id", id))
		}
	}

	if err := tx.Commit(); err != nil {
		return ragerr.Wrap(err, ragerr.CodeStoreDatabaseFailure, "committing links")
	}
	return nil
}

// ListQuestions returns the history, most recent first.
func (s *Store) ListQuestions(ctx context.Context) ([]domain.Question, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, question, answer, created_at FROM questions ORDER BY id DESC`)
	if err != nil {
		return nil, ragerr.Wrap(err, ragerr.CodeStoreDatabaseFailure, "querying questions")
	}
	defer func() { _ = rows.Close() }()

	out := []domain.Question{}
	for rows.Next() {
		var (
			q       domain.Question
			created string
		)
		if err := rows.Scan(&q.ID, &q.Text, &q.Answer, &created); err != nil {
			return nil, ragerr.Wrap(err, ragerr.CodeStoreDatabaseFailure, "scanning question")
		}
		q.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, ragerr.Wrap(err, ragerr.CodeStoreDatabaseFailure, "iterating questions")
	}
	return out, nil
}

func (s *Store) ListLinks(ctx context.Context, questionID int64) ([]domain.QuestionLink, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT question_id, embedding_id, rank FROM question_embeddings WHERE question_id = ? ORDER BY rank`,
		questionID,
	)
	if err != nil {
		return nil, ragerr.Wrap(err, ragerr.CodeStoreDatabaseFailure, "querying links")
	}
	defer func() { _ = rows.Close() }()

	var out []domain.QuestionLink
	for rows.Next() {
		var l domain.QuestionLink
		if err := rows.Scan(&l.QuestionID, &l.RecordID, &l.Rank); err != nil {
			return nil, ragerr.Wrap(err, ragerr.CodeStoreDatabaseFailure, "scanning link")
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, ragerr.Wrap(err, ragerr.CodeStoreDatabaseFailure, "iterating links")
	}
	return out, nil
}

// DeleteQuestion removes a question and its links atomically.
func (s *Store) DeleteQuestion(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ragerr.Wrap(err, ragerr.CodeStoreDatabaseFailure, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM question_embeddings WHERE question_id = ?`, id); err != nil {
		return ragerr.Wrap(err, ragerr.CodeStoreDatabaseFailure, "deleting links", ragerr.FieldQuestionID(id))
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM questions WHERE id = ?`, id)
	if err != nil {
		return ragerr.Wrap(err, ragerr.CodeStoreDatabaseFailure, "deleting question", ragerr.FieldQuestionID(id))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return ragerr.Wrap(err, ragerr.CodeStoreDatabaseFailure, "reading affected rows")
	}
	if n == 0 {
		return ragerr.New(ragerr.CodeStoreNotFound, "question not found", ragerr.FieldQuestionID(id))
	}
	if err := tx.Commit(); err != nil {
		return ragerr.Wrap(err, ragerr.CodeStoreDatabaseFailure, "committing delete")
	}
	return nil
}

func (s *Store) DeleteAllQuestions(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ragerr.Wrap(err, ragerr.CodeStoreDatabaseFailure, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM question_embeddings`); err != nil {
		return ragerr.Wrap(err, ragerr.CodeStoreDatabaseFailure, "deleting links")
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM questions`); err != nil {
		return ragerr.Wrap(err, ragerr.CodeStoreDatabaseFailure, "deleting questions")
	}
	if err := tx.Commit(); err != nil {
		return ragerr.Wrap(err, ragerr.CodeStoreDatabaseFailure, "committing delete")
	}
	return nil
}
