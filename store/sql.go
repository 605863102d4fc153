package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// SQLStore implements Store on top of sqlx, for both the postgres and the
// sqlite backends. Queries are written with ? placeholders and rebound per
// driver.
type SQLStore struct {
	db     *sqlx.DB
	cipher *Cipher
}

// NewSQL builds a Store over an open database handle.
func NewSQL(db *sqlx.DB, cipher *Cipher) *SQLStore {
	return &SQLStore{db: db, cipher: cipher}
}

type userRow struct {
	UserID           string         `db:"user_id"`
	Credential       sql.NullString `db:"credential"`
	ChatState        string         `db:"chat_state"`
	ImageDescription sql.NullString `db:"image_description"`
	ImageCount       int            `db:"image_count"`
	LastKeyboard     sql.NullString `db:"last_keyboard"`
}

// ensure lazily creates a default record on first touch.
func (s *SQLStore) ensure(ctx context.Context, userID string) error {
	q := s.db.Rebind(`INSERT INTO users (user_id) VALUES (?) ON CONFLICT (user_id) DO NOTHING`)
	if _, err := s.db.ExecContext(ctx, q, userID); err != nil {
		return fmt.Errorf("ensure user: %w", err)
	}
	return nil
}

func (s *SQLStore) row(ctx context.Context, userID string) (userRow, error) {
	if err := s.ensure(ctx, userID); err != nil {
		return userRow{}, err
	}
	var row userRow
	q := s.db.Rebind(`SELECT user_id, credential, chat_state, image_description, image_count, last_keyboard FROM users WHERE user_id = ?`)
	if err := s.db.GetContext(ctx, &row, q, userID); err != nil {
		return userRow{}, fmt.Errorf("select user: %w", err)
	}
	return row, nil
}

// Get returns the record for the user, creating it with defaults if absent.
func (s *SQLStore) Get(ctx context.Context, userID string) (UserRecord, error) {
	row, err := s.row(ctx, userID)
	if err != nil {
		return UserRecord{}, err
	}
	st := State(row.ChatState)
	if !st.Valid() {
		st = StateMain
	}
	return UserRecord{
		UserID:           row.UserID,
		HasCredential:    row.Credential.Valid && row.Credential.String != "",
		State:            st,
		ImageDescription: row.ImageDescription.String,
		ImageCount:       row.ImageCount,
		LastKeyboard:     row.LastKeyboard.String,
	}, nil
}

// Credential decrypts the stored credential on read.
func (s *SQLStore) Credential(ctx context.Context, userID string) (string, bool, error) {
	row, err := s.row(ctx, userID)
	if err != nil {
		return "", false, err
	}
	if !row.Credential.Valid || row.Credential.String == "" {
		return "", false, nil
	}
	plaintext, err := s.cipher.Open(row.Credential.String)
	if err != nil {
		return "", false, err
	}
	return plaintext, true, nil
}

// SetCredential encrypts before persisting; the plaintext never reaches the row.
func (s *SQLStore) SetCredential(ctx context.Context, userID, plaintext string) error {
	sealed, err := s.cipher.Seal(plaintext)
	if err != nil {
		return err
	}
	return s.setField(ctx, userID, "credential", sealed)
}

func (s *SQLStore) State(ctx context.Context, userID string) (State, error) {
	row, err := s.row(ctx, userID)
	if err != nil {
		return StateMain, err
	}
	st := State(row.ChatState)
	if !st.Valid() {
		return StateMain, nil
	}
	return st, nil
}

func (s *SQLStore) SetState(ctx context.Context, userID string, st State) error {
	return s.setField(ctx, userID, "chat_state", string(st))
}

func (s *SQLStore) SetImageDescription(ctx context.Context, userID, description string) error {
	return s.setField(ctx, userID, "image_description", description)
}

func (s *SQLStore) SetImageCount(ctx context.Context, userID string, count int) error {
	return s.setField(ctx, userID, "image_count", count)
}

func (s *SQLStore) LastKeyboard(ctx context.Context, userID string) (string, error) {
	row, err := s.row(ctx, userID)
	if err != nil {
		return "", err
	}
	return row.LastKeyboard.String, nil
}

func (s *SQLStore) SetLastKeyboard(ctx context.Context, userID, keyboard string) error {
	return s.setField(ctx, userID, "last_keyboard", keyboard)
}

// setField updates a single column in one statement; a concurrent reader sees
// either the old or the new value, never a torn record.
func (s *SQLStore) setField(ctx context.Context, userID, column string, value any) error {
	if err := s.ensure(ctx, userID); err != nil {
		return err
	}
	q := s.db.Rebind(fmt.Sprintf(`UPDATE users SET %s = ?, updated_at = CURRENT_TIMESTAMP WHERE user_id = ?`, column))
	if _, err := s.db.ExecContext(ctx, q, value, userID); err != nil {
		return fmt.Errorf("update %s: %w", column, err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying database handle.
func (s *SQLStore) Close() error {
	return s.db.Close()
}
