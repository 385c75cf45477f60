package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Repository provides typed access to the application tables.
//
// Timestamps are stored as unix nanoseconds so that history ordering is
// exact even for rows written in the same second; ties fall back to id.
type Repository struct {
	db  *Database
	now func() time.Time
}

// NewRepository creates a Repository over db.
func NewRepository(db *Database) *Repository {
	return &Repository{db: db, now: time.Now}
}

// WithClock overrides the timestamp source. Intended for tests.
func (r *Repository) WithClock(now func() time.Time) *Repository {
	r.now = now
	return r
}

// InsertImage stores a generation result and returns its id.
func (r *Repository) InsertImage(ctx context.Context, rec ImageRecord) (int64, error) {
	if r.db == nil {
		return 0, fmt.Errorf("database connection is nil")
	}
	if rec.Mode != ModeDirect && rec.Mode != ModeDerived {
		return 0, fmt.Errorf("invalid image mode %q", rec.Mode)
	}

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO images (
			user_id, prompt, image_url, mode, description,
			source_filename, correlation_id, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.OwnerID,
		rec.Prompt,
		rec.ImageURL,
		rec.Mode,
		nullString(rec.Description),
		nullString(rec.SourceFilename),
		nullString(rec.CorrelationID),
		r.now().UnixNano(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert image: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert id: %w", err)
	}
	return id, nil
}

// QueryRecentImages returns up to limit images owned by ownerID, newest first.
func (r *Repository) QueryRecentImages(ctx context.Context, ownerID string, limit int) ([]ImageRecord, error) {
	if r.db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}
	if limit <= 0 {
		return []ImageRecord{}, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, prompt, image_url, mode,
			   COALESCE(description, ''), COALESCE(source_filename, ''),
			   COALESCE(correlation_id, ''), created_at
		FROM images
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query images: %w", err)
	}
	defer rows.Close()

	records := []ImageRecord{}
	for rows.Next() {
		var rec ImageRecord
		var createdAt int64
		if err := rows.Scan(
			&rec.ID,
			&rec.OwnerID,
			&rec.Prompt,
			&rec.ImageURL,
			&rec.Mode,
			&rec.Description,
			&rec.SourceFilename,
			&rec.CorrelationID,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan image row: %w", err)
		}
		rec.CreatedAt = time.Unix(0, createdAt)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating image rows: %w", err)
	}
	return records, nil
}

// InsertChat stores a chat turn and returns its id.
func (r *Repository) InsertChat(ctx context.Context, rec ChatRecord) (int64, error) {
	if r.db == nil {
		return 0, fmt.Errorf("database connection is nil")
	}

	result, err := r.db.ExecContext(ctx,
		`INSERT INTO chats (user_id, message, response, created_at) VALUES (?, ?, ?, ?)`,
		rec.OwnerID, rec.Message, rec.Response, r.now().UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to insert chat: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert id: %w", err)
	}
	return id, nil
}

// QueryRecentChats returns up to limit chat turns owned by ownerID, newest first.
func (r *Repository) QueryRecentChats(ctx context.Context, ownerID string, limit int) ([]ChatRecord, error) {
	if r.db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}
	if limit <= 0 {
		return []ChatRecord{}, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, message, response, created_at
		FROM chats
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query chats: %w", err)
	}
	defer rows.Close()

	records := []ChatRecord{}
	for rows.Next() {
		var rec ChatRecord
		var createdAt int64
		if err := rows.Scan(&rec.ID, &rec.OwnerID, &rec.Message, &rec.Response, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan chat row: %w", err)
		}
		rec.CreatedAt = time.Unix(0, createdAt)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chat rows: %w", err)
	}
	return records, nil
}

// InsertUser creates an account. A duplicate email yields ErrDuplicateEmail.
func (r *Repository) InsertUser(ctx context.Context, rec UserRecord) (UserRecord, error) {
	if r.db == nil {
		return UserRecord{}, fmt.Errorf("database connection is nil")
	}

	now := r.now()
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO users (username, email, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		rec.Username, rec.Email, rec.PasswordHash, now.UnixNano())
	if err != nil {
		if isUniqueViolation(err) {
			return UserRecord{}, ErrDuplicateEmail
		}
		return UserRecord{}, fmt.Errorf("failed to insert user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return UserRecord{}, fmt.Errorf("failed to get last insert id: %w", err)
	}
	rec.ID = id
	rec.CreatedAt = time.Unix(0, now.UnixNano())
	return rec, nil
}

// FindUserByEmail looks up an account by email.
func (r *Repository) FindUserByEmail(ctx context.Context, email string) (UserRecord, error) {
	return r.findUser(ctx, `WHERE email = ?`, email)
}

// FindUserByID looks up an account by id.
func (r *Repository) FindUserByID(ctx context.Context, id int64) (UserRecord, error) {
	return r.findUser(ctx, `WHERE id = ?`, id)
}

func (r *Repository) findUser(ctx context.Context, where string, arg interface{}) (UserRecord, error) {
	if r.db == nil {
		return UserRecord{}, fmt.Errorf("database connection is nil")
	}

	var rec UserRecord
	var createdAt int64
	err := r.db.QueryRowContext(ctx,
		`SELECT id, username, email, password_hash, created_at FROM users `+where, arg,
	).Scan(&rec.ID, &rec.Username, &rec.Email, &rec.PasswordHash, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return UserRecord{}, ErrNotFound
	}
	if err != nil {
		return UserRecord{}, fmt.Errorf("failed to query user: %w", err)
	}
	rec.CreatedAt = time.Unix(0, createdAt)
	return rec, nil
}

// InsertFailure journals a failed generation run.
func (r *Repository) InsertFailure(ctx context.Context, rec FailureRecord) (int64, error) {
	if r.db == nil {
		return 0, fmt.Errorf("database connection is nil")
	}

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = r.now()
	}

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO generation_failures (
			correlation_id, user_id, stage, kind, message, created_at
		) VALUES (?, ?, ?, ?, ?, ?)`,
		rec.CorrelationID,
		nullString(rec.OwnerID),
		rec.Stage,
		rec.Kind,
		nullString(rec.Message),
		createdAt.UnixNano(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert generation failure: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert id: %w", err)
	}
	return id, nil
}

// QueryRecentFailures returns up to limit journaled failures, newest first.
func (r *Repository) QueryRecentFailures(ctx context.Context, limit int) ([]FailureRecord, error) {
	if r.db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, correlation_id, COALESCE(user_id, ''), stage, kind,
			   COALESCE(message, ''), created_at
		FROM generation_failures
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query generation failures: %w", err)
	}
	defer rows.Close()

	var records []FailureRecord
	for rows.Next() {
		var rec FailureRecord
		var createdAt int64
		if err := rows.Scan(&rec.ID, &rec.CorrelationID, &rec.OwnerID, &rec.Stage, &rec.Kind, &rec.Message, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan generation failure row: %w", err)
		}
		rec.CreatedAt = time.Unix(0, createdAt)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating generation failure rows: %w", err)
	}
	return records, nil
}

// FailureJournalHandler adapts InsertFailure for an AsyncWriter.
func (r *Repository) FailureJournalHandler() WriteHandler {
	return func(ctx context.Context, item interface{}) error {
		rec, ok := item.(FailureRecord)
		if !ok {
			return fmt.Errorf("unexpected journal item %T", item)
		}
		_, err := r.InsertFailure(ctx, rec)
		return err
	}
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}
