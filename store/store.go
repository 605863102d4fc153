// Package store owns durable per-user conversation state: the FSM state tag,
// the encrypted provider credential, and the image-flow scratch fields.
package store

import (
	"context"
	"errors"
)

// State identifies a conversation finite-state-machine step.
type State string

const (
	// StateMain is the default state for any user.
	StateMain State = "main"
	// StateProvidingAPIKey waits for the user to send a provider credential.
	StateProvidingAPIKey State = "providing_api_key"
	// StateSelectingAssistantRole waits for an assistant role selection.
	StateSelectingAssistantRole State = "selecting_assistant_role"
	// StateHavingConversation marks an active multi-turn assistant chat.
	StateHavingConversation State = "having_conversation_with_assistant"
	// StateProvidingImagesDescription waits for an image description.
	StateProvidingImagesDescription State = "providing_images_description"
	// StateSelectingImagesCount waits for an image count selection.
	StateSelectingImagesCount State = "selecting_images_count"
	// StateSelectingImagesSize waits for an image size selection.
	StateSelectingImagesSize State = "selecting_images_size"
	// StateProvidingMediaFile waits for a media file to transcribe.
	StateProvidingMediaFile State = "providing_media_file"
)

// Valid reports whether st is one of the known states.
func (st State) Valid() bool {
	switch st {
	case StateMain, StateProvidingAPIKey, StateSelectingAssistantRole,
		StateHavingConversation, StateProvidingImagesDescription,
		StateSelectingImagesCount, StateSelectingImagesSize,
		StateProvidingMediaFile:
		return true
	}
	return false
}

var (
	// ErrCryptoFailed indicates a stored credential could not be decrypted
	// under the active key. It must be surfaced per user, never treated as
	// "credential unset".
	ErrCryptoFailed = errors.New("store: credential decryption failed")
)

// UserRecord is the durable projection of one user. The credential plaintext
// is never part of the record; only its presence is exposed.
type UserRecord struct {
	UserID           string
	HasCredential    bool
	State            State
	ImageDescription string
	// ImageCount is only meaningful while State is StateSelectingImagesSize;
	// it is stale in any other state.
	ImageCount   int
	LastKeyboard string
}

// Store is the durable credential and session store. Implementations create
// a default record on the first reference to an unknown user and guarantee
// per-field atomic writes.
type Store interface {
	// Get returns the record for the user, creating it with defaults if absent.
	Get(ctx context.Context, userID string) (UserRecord, error)

	// Credential decrypts and returns the stored provider credential.
	// ok is false when no credential has ever been set. A ciphertext that
	// cannot be decrypted yields ErrCryptoFailed.
	Credential(ctx context.Context, userID string) (plaintext string, ok bool, err error)
	// SetCredential encrypts and persists the credential, replacing any
	// prior value.
	SetCredential(ctx context.Context, userID, plaintext string) error

	State(ctx context.Context, userID string) (State, error)
	SetState(ctx context.Context, userID string, st State) error

	SetImageDescription(ctx context.Context, userID, description string) error
	SetImageCount(ctx context.Context, userID string, count int) error

	LastKeyboard(ctx context.Context, userID string) (string, error)
	SetLastKeyboard(ctx context.Context, userID, keyboard string) error

	Ping(ctx context.Context) error
	Close() error
}
