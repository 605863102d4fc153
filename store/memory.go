package store

import (
	"context"
	"sync"
)

type memoryRecord struct {
	credential       string // sealed blob, same representation as the SQL backend
	state            State
	imageDescription string
	imageCount       int
	lastKeyboard     string
}

// Memory is an in-memory Store for tests and development. It shares the
// Cipher with the durable backends so credential sealing behaves identically.
type Memory struct {
	mu      sync.RWMutex
	cipher  *Cipher
	records map[string]*memoryRecord
}

// NewMemory constructs an in-memory Store implementation.
func NewMemory(cipher *Cipher) *Memory {
	return &Memory{
		cipher:  cipher,
		records: make(map[string]*memoryRecord),
	}
}

func (m *Memory) record(userID string) *memoryRecord {
	rec, ok := m.records[userID]
	if !ok {
		rec = &memoryRecord{state: StateMain, imageCount: 1}
		m.records[userID] = rec
	}
	return rec
}

func (m *Memory) Get(_ context.Context, userID string) (UserRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.record(userID)
	return UserRecord{
		UserID:           userID,
		HasCredential:    rec.credential != "",
		State:            rec.state,
		ImageDescription: rec.imageDescription,
		ImageCount:       rec.imageCount,
		LastKeyboard:     rec.lastKeyboard,
	}, nil
}

func (m *Memory) Credential(_ context.Context, userID string) (string, bool, error) {
	m.mu.Lock()
	sealed := m.record(userID).credential
	m.mu.Unlock()
	if sealed == "" {
		return "", false, nil
	}
	plaintext, err := m.cipher.Open(sealed)
	if err != nil {
		return "", false, err
	}
	return plaintext, true, nil
}

func (m *Memory) SetCredential(_ context.Context, userID, plaintext string) error {
	sealed, err := m.cipher.Seal(plaintext)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record(userID).credential = sealed
	return nil
}

func (m *Memory) State(_ context.Context, userID string) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.record(userID).state, nil
}

func (m *Memory) SetState(_ context.Context, userID string, st State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record(userID).state = st
	return nil
}

func (m *Memory) SetImageDescription(_ context.Context, userID, description string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record(userID).imageDescription = description
	return nil
}

func (m *Memory) SetImageCount(_ context.Context, userID string, count int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record(userID).imageCount = count
	return nil
}

func (m *Memory) LastKeyboard(_ context.Context, userID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.record(userID).lastKeyboard, nil
}

func (m *Memory) SetLastKeyboard(_ context.Context, userID, keyboard string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record(userID).lastKeyboard = keyboard
	return nil
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Close() error { return nil }

// SealedCredential exposes the stored blob for tests asserting that the
// persisted value never equals the plaintext.
func (m *Memory) SealedCredential(userID string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if rec, ok := m.records[userID]; ok {
		return rec.credential
	}
	return ""
}
