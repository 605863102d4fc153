// Package bot is the conversation engine: a per-user finite state machine
// driven by inbound platform events, with provider calls and replies as
// side effects.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/smartassist/viberbot/logger"
	"github.com/smartassist/viberbot/openai"
	"github.com/smartassist/viberbot/store"
	"github.com/smartassist/viberbot/viber"
)

// Session is one active multi-turn conversation. The credential is passed on
// every Ask and never retained by the session.
type Session interface {
	Role() string
	Ask(ctx context.Context, credential, text string) (string, error)
}

// Assistant is the upstream provider surface the engine drives.
type Assistant interface {
	Complete(ctx context.Context, credential, prompt string) (string, error)
	GenerateImages(ctx context.Context, credential, description string, count int, size openai.ImageSize) ([]string, error)
	Transcribe(ctx context.Context, credential, path string) (string, error)
	NewSession(role string) Session
}

// OpenAIAssistant adapts *openai.Client to the Assistant interface.
type OpenAIAssistant struct {
	*openai.Client
}

// NewSession opens a role-bound conversation.
func (a OpenAIAssistant) NewSession(role string) Session {
	return a.Client.NewSession(role)
}

// Messenger delivers replies. Accepting a message means queued, not
// delivered; the engine never retries.
type Messenger interface {
	SendText(ctx context.Context, userID, text string) error
	SendKeyboard(ctx context.Context, userID, text string, kb viber.Keyboard) error
	SendPicture(ctx context.Context, userID, mediaURL, caption string) error
}

// Downloader fetches platform media to a local path.
type Downloader interface {
	DownloadFile(ctx context.Context, url, path string, maxBytes int64) error
}

// Options wires an Engine.
type Options struct {
	Store      store.Store
	Assistant  Assistant
	Messenger  Messenger
	Downloader Downloader

	MediaDir     string
	MaxFileBytes int64
}

// Engine routes inbound events through the per-user state machine. Events
// for one user are serialized across store and provider calls; distinct
// users proceed concurrently.
type Engine struct {
	store      store.Store
	assistant  Assistant
	messenger  Messenger
	downloader Downloader

	locks    *lockRegistry
	sessions *sessionRegistry

	mediaDir     string
	maxFileBytes int64
}

// New builds an engine from options.
func New(opts Options) *Engine {
	if opts.MediaDir == "" {
		opts.MediaDir = os.TempDir()
	}
	if opts.MaxFileBytes <= 0 {
		opts.MaxFileBytes = 50 << 20
	}
	return &Engine{
		store:        opts.Store,
		assistant:    opts.Assistant,
		messenger:    opts.Messenger,
		downloader:   opts.Downloader,
		locks:        newLockRegistry(),
		sessions:     newSessionRegistry(),
		mediaDir:     opts.MediaDir,
		maxFileBytes: opts.MaxFileBytes,
	}
}

// Handle processes one inbound event to completion. Store and provider
// failures become user-visible replies; nothing escapes as a panic or an
// error to the webhook.
func (e *Engine) Handle(ctx context.Context, ev viber.Event) {
	ctx = logger.WithEventMeta(ctx, string(ev.Kind), ev.UserID)

	switch ev.Kind {
	case viber.KindConversationStarted, viber.KindSubscribed:
		e.withUser(ev.UserID, func() { e.welcome(ctx, ev.UserID) })
	case viber.KindMessage:
		e.withUser(ev.UserID, func() { e.handleMessage(ctx, ev) })
	case viber.KindUnsubscribed:
		e.withUser(ev.UserID, func() {
			e.sessions.remove(ev.UserID)
			logger.Info(ctx, "bot", "user.unsubscribed")
		})
	case viber.KindFailed:
		logger.Warn(ctx, "bot", "delivery.failed", slog.String("desc", logger.SanitizeLimit(ev.Desc, 200)))
	case viber.KindDelivered, viber.KindSeen, viber.KindWebhook:
		if logger.ShouldSampleDebug() {
			logger.Debug(ctx, "bot", "event.ignored")
		}
	default:
		logger.Warn(ctx, "bot", "event.unknown")
	}
}

func (e *Engine) withUser(userID string, fn func()) {
	release := e.locks.acquire(userID)
	defer release()
	fn()
}

func (e *Engine) welcome(ctx context.Context, userID string) {
	rec, err := e.store.Get(ctx, userID)
	if err != nil {
		e.storeFailure(ctx, userID, err)
		return
	}
	text := msgWelcome
	kb := mainKeyboard()
	if !rec.HasCredential {
		text += " " + msgAPIKeyRequired
		kb = setAPIKeyKeyboard()
	}
	e.sendText(ctx, userID, text)
	e.sendKeyboard(ctx, userID, "", kb)
}

func (e *Engine) handleMessage(ctx context.Context, ev viber.Event) {
	switch {
	case ev.IsText():
		// Known action tokens always win over free-text interpretation.
		if a, ok := ParseAction(ev.Text); ok {
			e.handleAction(ctx, ev.UserID, a)
			return
		}
		e.handleText(ctx, ev.UserID, ev.Text)
	case ev.IsFile():
		e.handleFile(ctx, ev.UserID, ev.File)
	default:
		logger.Warn(ctx, "bot", "message.unsupported_type", slog.String("type", ev.MessageType))
		e.sendText(ctx, ev.UserID, msgNotSupported)
	}
}

func (e *Engine) handleAction(ctx context.Context, userID string, a Action) {
	ctx = logger.WithHandler(ctx, "action:"+string(a))
	rec, err := e.store.Get(ctx, userID)
	if err != nil {
		e.storeFailure(ctx, userID, err)
		return
	}

	// Global actions pre-empt state-specific handling.
	switch a {
	case ActionHelp:
		e.sendText(ctx, userID, msgHelp)
		if rec.HasCredential {
			e.sendKeyboard(ctx, userID, "", mainKeyboard())
		} else {
			e.sendKeyboard(ctx, userID, "", setAPIKeyKeyboard())
		}
		return
	case ActionCancel:
		e.sessions.remove(userID)
		if rec.State != store.StateMain {
			e.setState(ctx, userID, rec.State, store.StateMain)
		}
		if rec.HasCredential {
			e.sendKeyboard(ctx, userID, "", mainKeyboard())
		} else {
			e.sendKeyboard(ctx, userID, "", setAPIKeyKeyboard())
		}
		return
	case ActionSetAPIKey:
		e.sendKeyboard(ctx, userID, msgSendAPIKey, cancelKeyboard())
		e.setState(ctx, userID, rec.State, store.StateProvidingAPIKey)
		return
	}

	// Everything below needs an onboarded user.
	if !rec.HasCredential {
		e.forceCredentialSetup(ctx, userID, rec.State)
		return
	}

	role, isRole := a.Role()
	count, isCount := a.Count()
	size, isSize := a.Size()

	switch {
	case a == ActionStartChat && rec.State == store.StateMain:
		e.sendKeyboard(ctx, userID, msgSelectRole, rolesKeyboard())
		e.setState(ctx, userID, rec.State, store.StateSelectingAssistantRole)

	case isRole && rec.State == store.StateSelectingAssistantRole:
		e.startChatSession(ctx, userID, rec.State, role)
	case isRole:
		// Selection token outside its state degrades to plain text.
		e.routeText(ctx, userID, rec, string(a))

	case a == ActionEndChat && rec.State == store.StateHavingConversation:
		e.sessions.remove(userID)
		e.sendText(ctx, userID, msgChatEnded)
		e.sendKeyboard(ctx, userID, "", mainKeyboard())
		e.setState(ctx, userID, rec.State, store.StateMain)
	case a == ActionEndChat:
		e.routeText(ctx, userID, rec, string(a))

	case a == ActionGenerateImage && rec.State == store.StateMain:
		e.sendKeyboard(ctx, userID, msgImageDescription, cancelKeyboard())
		e.setState(ctx, userID, rec.State, store.StateProvidingImagesDescription)

	case isCount && rec.State == store.StateSelectingImagesCount:
		e.selectImageCount(ctx, userID, rec.State, count)
	case isCount:
		e.routeText(ctx, userID, rec, string(a))

	case isSize && rec.State == store.StateSelectingImagesSize:
		e.generateImages(ctx, userID, rec, size)
	case isSize:
		e.routeText(ctx, userID, rec, string(a))

	case a == ActionTranscriptMedia && rec.State == store.StateMain:
		e.sendKeyboard(ctx, userID, msgSendMediaFile, cancelKeyboard())
		e.setState(ctx, userID, rec.State, store.StateProvidingMediaFile)

	default:
		logger.Info(ctx, "bot", "action.unmatched",
			slog.String("action", string(a)),
			slog.String("state", string(rec.State)),
		)
		e.sendText(ctx, userID, msgNotSupported)
	}
}

func (e *Engine) handleText(ctx context.Context, userID, text string) {
	ctx = logger.WithHandler(ctx, "text")
	rec, err := e.store.Get(ctx, userID)
	if err != nil {
		e.storeFailure(ctx, userID, err)
		return
	}
	e.routeText(ctx, userID, rec, text)
}

func (e *Engine) routeText(ctx context.Context, userID string, rec store.UserRecord, text string) {
	// No state beyond the first two is usable without a credential.
	if rec.State != store.StateMain && rec.State != store.StateProvidingAPIKey && !rec.HasCredential {
		e.forceCredentialSetup(ctx, userID, rec.State)
		return
	}

	switch rec.State {
	case store.StateProvidingAPIKey:
		e.storeCredential(ctx, userID, rec.State, text)

	case store.StateSelectingAssistantRole:
		e.startChatSession(ctx, userID, rec.State, strings.TrimSpace(text))

	case store.StateHavingConversation:
		e.askAssistant(ctx, userID, text)

	case store.StateProvidingImagesDescription:
		if err := e.store.SetImageDescription(ctx, userID, text); err != nil {
			e.storeFailure(ctx, userID, err)
			return
		}
		e.sendKeyboard(ctx, userID, msgImageCount, imageCountKeyboard())
		e.setState(ctx, userID, rec.State, store.StateSelectingImagesCount)

	case store.StateSelectingImagesCount:
		if count, ok := parseFreeCount(text); ok {
			e.selectImageCount(ctx, userID, rec.State, count)
			return
		}
		e.sendText(ctx, userID, msgNotSupported)

	case store.StateSelectingImagesSize:
		if size, ok := parseFreeSize(text); ok {
			e.generateImages(ctx, userID, rec, size)
			return
		}
		e.sendText(ctx, userID, msgNotSupported)

	case store.StateProvidingMediaFile:
		e.sendText(ctx, userID, msgNotSupported)

	default: // StateMain
		e.mainText(ctx, userID, rec, text)
	}
}

func (e *Engine) mainText(ctx context.Context, userID string, rec store.UserRecord, text string) {
	if !rec.HasCredential {
		e.sendKeyboard(ctx, userID, msgAPIKeyRequired, setAPIKeyKeyboard())
		e.setState(ctx, userID, rec.State, store.StateProvidingAPIKey)
		return
	}
	credential, ok := e.credential(ctx, userID, rec.State)
	if !ok {
		return
	}
	e.sendText(ctx, userID, msgAssistantAnswering)
	answer, err := e.assistant.Complete(ctx, credential, text)
	if err != nil {
		e.providerFailure(ctx, userID, "complete", err)
		return
	}
	e.sendText(ctx, userID, answer)
	e.sendKeyboard(ctx, userID, "", mainKeyboard())
}

func (e *Engine) storeCredential(ctx context.Context, userID string, from store.State, text string) {
	if err := e.store.SetCredential(ctx, userID, strings.TrimSpace(text)); err != nil {
		e.storeFailure(ctx, userID, err)
		return
	}
	e.sendKeyboard(ctx, userID, msgAPIKeySet, mainKeyboard())
	e.setState(ctx, userID, from, store.StateMain)
}

func (e *Engine) startChatSession(ctx context.Context, userID string, from store.State, role string) {
	if role == "" {
		e.sendKeyboard(ctx, userID, msgSelectRole, rolesKeyboard())
		return
	}
	e.sessions.set(userID, e.assistant.NewSession(role))
	logger.Info(ctx, "bot", "chat.started", slog.String("role", logger.SanitizeLimit(role, 64)))
	e.sendKeyboard(ctx, userID, msgChatStarted, endChatKeyboard())
	e.setState(ctx, userID, from, store.StateHavingConversation)
}

func (e *Engine) askAssistant(ctx context.Context, userID, text string) {
	session, ok := e.sessions.get(userID)
	if !ok {
		// The process restarted while the durable state still says a chat
		// is active. Tell the user and start over.
		e.sendKeyboard(ctx, userID, msgChatLost, mainKeyboard())
		e.setState(ctx, userID, store.StateHavingConversation, store.StateMain)
		return
	}
	credential, ok := e.credential(ctx, userID, store.StateHavingConversation)
	if !ok {
		return
	}
	e.sendText(ctx, userID, msgAssistantAnswering)
	answer, err := session.Ask(ctx, credential, text)
	if err != nil {
		e.providerFailure(ctx, userID, "ask", err)
		e.sendKeyboard(ctx, userID, "", endChatKeyboard())
		return
	}
	e.sendText(ctx, userID, answer)
	e.sendKeyboard(ctx, userID, "", endChatKeyboard())
}

func (e *Engine) selectImageCount(ctx context.Context, userID string, from store.State, count int) {
	if err := e.store.SetImageCount(ctx, userID, count); err != nil {
		e.storeFailure(ctx, userID, err)
		return
	}
	e.sendKeyboard(ctx, userID, msgImageSize, imageSizeKeyboard())
	e.setState(ctx, userID, from, store.StateSelectingImagesSize)
}

func (e *Engine) generateImages(ctx context.Context, userID string, rec store.UserRecord, size openai.ImageSize) {
	credential, ok := e.credential(ctx, userID, rec.State)
	if !ok {
		return
	}
	count := rec.ImageCount
	if count < 1 || count > 4 {
		count = 1
	}
	e.sendText(ctx, userID, msgImagesGenerating)
	urls, err := e.assistant.GenerateImages(ctx, credential, rec.ImageDescription, count, size)
	if err != nil {
		// Stay in the size selection so the user can retry.
		e.providerFailure(ctx, userID, "images", err)
		e.sendKeyboard(ctx, userID, msgImageSize, imageSizeKeyboard())
		return
	}
	for _, url := range urls {
		e.sendPicture(ctx, userID, url)
	}
	e.sendKeyboard(ctx, userID, msgHereAreImages, mainKeyboard())
	e.setState(ctx, userID, rec.State, store.StateMain)
}

func (e *Engine) handleFile(ctx context.Context, userID string, f *viber.File) {
	ctx = logger.WithHandler(ctx, "file")
	rec, err := e.store.Get(ctx, userID)
	if err != nil {
		e.storeFailure(ctx, userID, err)
		return
	}
	if rec.State != store.StateProvidingMediaFile {
		e.sendText(ctx, userID, msgNotSupported)
		return
	}
	if !rec.HasCredential {
		e.forceCredentialSetup(ctx, userID, rec.State)
		return
	}
	if !isMediaFile(f.Name) {
		logger.Info(ctx, "bot", "media.rejected", slog.String("file", logger.SanitizeLimit(f.Name, 128)))
		e.sendText(ctx, userID, msgBadFileType)
		return
	}
	credential, ok := e.credential(ctx, userID, rec.State)
	if !ok {
		return
	}

	e.sendText(ctx, userID, msgTranscribing)

	// Whatever happens past this point the user comes back to the menu.
	defer func() {
		e.sendKeyboard(ctx, userID, "", mainKeyboard())
		e.setState(ctx, userID, rec.State, store.StateMain)
	}()

	path := filepath.Join(e.mediaDir, fmt.Sprintf("%d_%s", time.Now().UnixNano(), filepath.Base(f.Name)))
	if err := e.downloader.DownloadFile(ctx, f.URL, path, e.maxFileBytes); err != nil {
		logger.Error(ctx, "bot", "media.download.fail", slog.String("err", logger.Sanitize(err.Error())))
		e.sendText(ctx, userID, msgFileDownloadFailed)
		return
	}
	defer os.Remove(path)

	transcript, err := e.assistant.Transcribe(ctx, credential, path)
	if err != nil {
		e.providerFailure(ctx, userID, "transcribe", err)
		return
	}
	e.sendText(ctx, userID, transcript)
}

// credential decrypts the user's stored key for the current call. A broken
// ciphertext is surfaced to the user and resets the flow; ok is false when
// the caller should stop.
func (e *Engine) credential(ctx context.Context, userID string, from store.State) (string, bool) {
	credential, present, err := e.store.Credential(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrCryptoFailed) {
			logger.Error(ctx, "bot", "credential.crypto_failed")
			e.sendKeyboard(ctx, userID, msgCredentialBroken, setAPIKeyKeyboard())
			e.setState(ctx, userID, from, store.StateMain)
			return "", false
		}
		e.storeFailure(ctx, userID, err)
		return "", false
	}
	if !present {
		e.forceCredentialSetup(ctx, userID, from)
		return "", false
	}
	return credential, true
}

func (e *Engine) forceCredentialSetup(ctx context.Context, userID string, from store.State) {
	e.sendKeyboard(ctx, userID, msgGenericError+" "+msgAPIKeyRequired, setAPIKeyKeyboard())
	e.setState(ctx, userID, from, store.StateMain)
}

func (e *Engine) setState(ctx context.Context, userID string, from, to store.State) {
	if err := e.store.SetState(ctx, userID, to); err != nil {
		e.storeFailure(ctx, userID, err)
		return
	}
	logger.Info(ctx, "bot", "state.transition",
		slog.String("from_state", string(from)),
		slog.String("to_state", string(to)),
	)
}

// storeFailure reports a transient store problem without touching state, so
// the user can retry the same input.
func (e *Engine) storeFailure(ctx context.Context, userID string, err error) {
	logger.Error(ctx, "bot", "store.fail", slog.String("err", logger.Sanitize(err.Error())))
	e.sendText(ctx, userID, msgTryAgainLater)
	if raw, lkErr := e.store.LastKeyboard(ctx, userID); lkErr == nil {
		if kb, ok := viber.DecodeKeyboard(raw); ok {
			if sendErr := e.messenger.SendKeyboard(ctx, userID, "", kb); sendErr != nil {
				logger.Warn(ctx, "bot", "send.keyboard.fail", slog.String("err", logger.Sanitize(sendErr.Error())))
			}
		}
	}
}

func (e *Engine) providerFailure(ctx context.Context, userID, op string, err error) {
	logger.Error(ctx, "bot", "provider.fail",
		slog.String("op", op),
		slog.String("err", logger.Sanitize(err.Error())),
	)
	e.sendText(ctx, userID, msgTryAgainLater)
}

func (e *Engine) sendText(ctx context.Context, userID, text string) {
	if err := e.messenger.SendText(ctx, userID, text); err != nil {
		logger.Warn(ctx, "bot", "send.text.fail", slog.String("err", logger.Sanitize(err.Error())))
	}
}

func (e *Engine) sendPicture(ctx context.Context, userID, url string) {
	if err := e.messenger.SendPicture(ctx, userID, url, ""); err != nil {
		logger.Warn(ctx, "bot", "send.picture.fail", slog.String("err", logger.Sanitize(err.Error())))
	}
}

// sendKeyboard appends the help button, delivers the markup and persists it
// so error replies can restore the last menu.
func (e *Engine) sendKeyboard(ctx context.Context, userID, text string, kb viber.Keyboard) {
	full := kb.Append(helpButton)
	if err := e.messenger.SendKeyboard(ctx, userID, text, full); err != nil {
		logger.Warn(ctx, "bot", "send.keyboard.fail", slog.String("err", logger.Sanitize(err.Error())))
	}
	if err := e.store.SetLastKeyboard(ctx, userID, full.Encode()); err != nil {
		logger.Warn(ctx, "bot", "keyboard.persist.fail", slog.String("err", logger.Sanitize(err.Error())))
	}
}
