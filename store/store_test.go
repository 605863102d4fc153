package store

import (
	"context"
	"errors"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

const testDDL = `
CREATE TABLE users (
    user_id           TEXT PRIMARY KEY,
    credential        TEXT,
    chat_state        TEXT NOT NULL DEFAULT 'main',
    image_description TEXT,
    image_count       INTEGER NOT NULL DEFAULT 1,
    last_keyboard     TEXT,
    created_at        TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at        TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);`

func newSQLiteStore(t *testing.T, cipher *Cipher) *SQLStore {
	t.Helper()
	db, err := sqlx.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(testDDL); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewSQL(db, cipher)
}

func runStoreSuite(t *testing.T, open func(t *testing.T, cipher *Cipher) Store) {
	ctx := context.Background()

	t.Run("first touch defaults", func(t *testing.T) {
		s := open(t, testCipher(t, 0x10))
		rec, err := s.Get(ctx, "fresh-user")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if rec.State != StateMain {
			t.Errorf("state = %q, want %q", rec.State, StateMain)
		}
		if rec.HasCredential {
			t.Error("fresh user reports a credential")
		}
		if rec.ImageCount != 1 {
			t.Errorf("image count = %d, want 1", rec.ImageCount)
		}
		if _, ok, err := s.Credential(ctx, "fresh-user"); err != nil || ok {
			t.Errorf("Credential = ok=%v err=%v, want absent", ok, err)
		}
	})

	t.Run("credential round trip", func(t *testing.T) {
		s := open(t, testCipher(t, 0x11))
		if err := s.SetCredential(ctx, "u1", "sk-test"); err != nil {
			t.Fatalf("SetCredential: %v", err)
		}
		got, ok, err := s.Credential(ctx, "u1")
		if err != nil || !ok {
			t.Fatalf("Credential = ok=%v err=%v", ok, err)
		}
		if got != "sk-test" {
			t.Errorf("credential = %q, want %q", got, "sk-test")
		}
		rec, err := s.Get(ctx, "u1")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if !rec.HasCredential {
			t.Error("HasCredential = false after SetCredential")
		}
	})

	t.Run("state transitions persist", func(t *testing.T) {
		s := open(t, testCipher(t, 0x12))
		if err := s.SetState(ctx, "u2", StateProvidingAPIKey); err != nil {
			t.Fatalf("SetState: %v", err)
		}
		st, err := s.State(ctx, "u2")
		if err != nil {
			t.Fatalf("State: %v", err)
		}
		if st != StateProvidingAPIKey {
			t.Errorf("state = %q, want %q", st, StateProvidingAPIKey)
		}
	})

	t.Run("image fields", func(t *testing.T) {
		s := open(t, testCipher(t, 0x13))
		if err := s.SetImageDescription(ctx, "u3", "a red fox"); err != nil {
			t.Fatalf("SetImageDescription: %v", err)
		}
		if err := s.SetImageCount(ctx, "u3", 3); err != nil {
			t.Fatalf("SetImageCount: %v", err)
		}
		rec, err := s.Get(ctx, "u3")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if rec.ImageDescription != "a red fox" || rec.ImageCount != 3 {
			t.Errorf("record = %+v, want description %q count 3", rec, "a red fox")
		}
	})

	t.Run("last keyboard", func(t *testing.T) {
		s := open(t, testCipher(t, 0x14))
		kb, err := s.LastKeyboard(ctx, "u4")
		if err != nil {
			t.Fatalf("LastKeyboard: %v", err)
		}
		if kb != "" {
			t.Errorf("fresh keyboard = %q, want empty", kb)
		}
		if err := s.SetLastKeyboard(ctx, "u4", `{"Type":"keyboard"}`); err != nil {
			t.Fatalf("SetLastKeyboard: %v", err)
		}
		kb, err = s.LastKeyboard(ctx, "u4")
		if err != nil {
			t.Fatalf("LastKeyboard: %v", err)
		}
		if kb != `{"Type":"keyboard"}` {
			t.Errorf("keyboard = %q", kb)
		}
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreSuite(t, func(t *testing.T, cipher *Cipher) Store {
		return NewMemory(cipher)
	})
}

func TestSQLStore(t *testing.T) {
	runStoreSuite(t, func(t *testing.T, cipher *Cipher) Store {
		return newSQLiteStore(t, cipher)
	})
}

func TestMemoryCredentialSealedAtRest(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(testCipher(t, 0x20))
	if err := m.SetCredential(ctx, "u", "sk-plain"); err != nil {
		t.Fatalf("SetCredential: %v", err)
	}
	if sealed := m.SealedCredential("u"); sealed == "sk-plain" || sealed == "" {
		t.Errorf("sealed blob = %q, want non-empty and distinct from plaintext", sealed)
	}
}

func TestSQLCredentialSealedAtRest(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t, testCipher(t, 0x21))
	if err := s.SetCredential(ctx, "u", "sk-plain"); err != nil {
		t.Fatalf("SetCredential: %v", err)
	}
	var blob string
	if err := s.db.Get(&blob, `SELECT credential FROM users WHERE user_id = 'u'`); err != nil {
		t.Fatalf("read raw credential: %v", err)
	}
	if blob == "sk-plain" || blob == "" {
		t.Errorf("persisted blob = %q, want sealed ciphertext", blob)
	}
}

func TestSQLCredentialKeyRotation(t *testing.T) {
	ctx := context.Background()
	db, err := sqlx.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	if _, err := db.Exec(testDDL); err != nil {
		t.Fatalf("create schema: %v", err)
	}

	writer := NewSQL(db, testCipher(t, 0x30))
	if err := writer.SetCredential(ctx, "u", "sk-old-key"); err != nil {
		t.Fatalf("SetCredential: %v", err)
	}

	// Same rows read under a different key must surface a crypto failure,
	// not pretend the credential was never set.
	reader := NewSQL(db, testCipher(t, 0x31))
	_, _, err = reader.Credential(ctx, "u")
	if !errors.Is(err, ErrCryptoFailed) {
		t.Fatalf("Credential under rotated key = %v, want ErrCryptoFailed", err)
	}
}

func TestStateValid(t *testing.T) {
	for _, st := range []State{
		StateMain, StateProvidingAPIKey, StateSelectingAssistantRole,
		StateHavingConversation, StateProvidingImagesDescription,
		StateSelectingImagesCount, StateSelectingImagesSize, StateProvidingMediaFile,
	} {
		if !st.Valid() {
			t.Errorf("%q not valid", st)
		}
	}
	if State("bogus").Valid() {
		t.Error("bogus state reported valid")
	}
}
