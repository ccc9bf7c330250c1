package thread

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/voiceqa/pkg/models"
)

// ComposerPhase tracks where a draft sits in the mention-autocomplete flow.
// Submission is orthogonal and can happen from any phase.
type ComposerPhase int

const (
	// PhaseIdle means no mention context is active.
	PhaseIdle ComposerPhase = iota
	// PhaseQuerying means a mention context exists but no suggestions are
	// visible yet (query too short, lookup in flight, or empty result).
	PhaseQuerying
	// PhaseSuggesting means suggestions are available for the active context.
	PhaseSuggesting
)

// DefaultMinMentionQuery is the minimum query length before a suggestion
// lookup fires. Single characters produce too much noise to be useful.
const DefaultMinMentionQuery = 2

// EmptyCommentMessage is the local validation message shown when a draft is
// submitted with nothing but whitespace in it.
const EmptyCommentMessage = "Please enter a comment before submitting."

// SubmitFailedMessage is the generic error surfaced when the store rejects a
// create or update. Raw store errors are logged, never shown.
const SubmitFailedMessage = "Unable to submit comment. Please try again."

// ErrEmptyComment is returned by Submit when the trimmed draft is empty. The
// store is never called in that case.
var ErrEmptyComment = errors.New("comment content is empty")

// ErrSubmitInFlight is returned when Submit is called while a previous submit
// has not finished. Hosts disable the submit control while Submitting is set,
// so hitting this means the control wiring is wrong.
var ErrSubmitInFlight = errors.New("submit already in flight")

// SubmitFunc receives the normalized payload of a finished draft: trimmed
// content plus the accumulated structured mentions.
type SubmitFunc func(ctx context.Context, content string, mentions []models.Mention) error

// ComposerConfig wires a composer to its collaborators. The same type serves
// both "new comment" and "edit existing comment"; an edit composer carries
// the comment's current text and mentions as initial values.
type ComposerConfig struct {
	Suggest SuggestionSource
	Submit  SubmitFunc

	InitialText     string
	InitialMentions []models.Mention

	// SubmitLabel is the host-facing label for the submit control, e.g.
	// "Comment" or "Save changes". The composer itself does not interpret it.
	SubmitLabel string

	// OnCancel tells the host to leave edit mode. Optional.
	OnCancel func()

	// MinQueryLength overrides DefaultMinMentionQuery when > 0.
	MinQueryLength int
}

// ComposerState is a copy of everything a host needs to render the composer.
type ComposerState struct {
	Phase              ComposerPhase
	Text               string
	Mentions           []models.Mention
	MentionContext     *MentionContext
	Suggestions        []models.MentionSuggestion
	LoadingSuggestions bool
	Submitting         bool
	SubmitError        string
	ValidationError    string
	SubmitLabel        string
}

// Composer owns one draft: its text, the caret-derived mention context, the
// in-flight suggestion list, and the structured mentions accumulated so far.
// All methods are safe for concurrent use; suggestion results are applied
// last-write-wins by supersession, so a stale lookup can never overwrite a
// newer one even if it resolves later.
type Composer struct {
	mu sync.Mutex

	suggest  SuggestionSource
	submit   SubmitFunc
	onCancel func()
	minQuery int
	label    string

	initialText     string
	initialMentions []models.Mention

	text       string
	mentions   []models.Mention
	mentionCtx *MentionContext

	suggestions []models.MentionSuggestion
	loading     bool

	submitting    bool
	submitError   string
	validationErr string

	// gen supersedes in-flight suggestion lookups: bumped on every context
	// change, acceptance, submit, cancel, and close. A lookup captures the
	// value at dispatch and its result is dropped if the value has moved.
	gen    uint64
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
}

// NewComposer creates a composer for a fresh or pre-populated draft.
func NewComposer(cfg ComposerConfig) *Composer {
	minQuery := cfg.MinQueryLength
	if minQuery <= 0 {
		minQuery = DefaultMinMentionQuery
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Composer{
		suggest:         cfg.Suggest,
		submit:          cfg.Submit,
		onCancel:        cfg.OnCancel,
		minQuery:        minQuery,
		label:           cfg.SubmitLabel,
		initialText:     cfg.InitialText,
		initialMentions: cloneMentions(cfg.InitialMentions),
		text:            cfg.InitialText,
		mentions:        cloneMentions(cfg.InitialMentions),
		ctx:             ctx,
		cancel:          cancel,
	}
}

// SetText records a text change and recomputes the mention context against
// the new text and the control's caret offset. Callers that cannot report a
// caret pass -1 to fall back to end-of-text. Context changes clear the
// visible suggestions; a new query at or above the minimum length kicks off
// an asynchronous lookup.
func (c *Composer) SetText(text string, caret int) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}

	c.text = text
	c.gen++
	gen := c.gen

	mc, ok := DetectMention(text, caret)
	if !ok {
		c.mentionCtx = nil
		c.suggestions = nil
		c.loading = false
		c.mu.Unlock()
		return
	}

	c.mentionCtx = &mc
	c.suggestions = nil
	if len(mc.Query) < c.minQuery {
		c.loading = false
		c.mu.Unlock()
		return
	}

	c.loading = true
	c.mu.Unlock()

	go c.fetchSuggestions(gen, mc.Query)
}

// fetchSuggestions runs one lookup and applies the result only if no newer
// context has superseded it in the meantime. Lookup failures degrade to an
// empty list: suggestions are an enhancement, never a blocker.
func (c *Composer) fetchSuggestions(gen uint64, query string) {
	results, err := c.suggest.SuggestMentions(c.ctx, query)
	if err != nil {
		log.Debug().Err(err).Str("query", query).Msg("mention suggestion lookup failed")
		results = nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || gen != c.gen {
		return
	}

	c.loading = false
	c.suggestions = results
}

// AcceptSuggestion replaces the active "@query" token with
// "@" + display name + " ", records the structured mention, and clears the
// ephemeral mention state. Accepting the same user twice keeps a single
// Mention record even though the literal "@name" text may repeat. Returns the
// caret position after the inserted text so the host can restore it.
func (c *Composer) AcceptSuggestion(s models.MentionSuggestion) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.mentionCtx == nil {
		return len(c.text)
	}

	display := s.DisplayName
	if display == "" {
		display = s.UserID
	}

	mc := *c.mentionCtx
	inserted := "@" + display + " "
	c.text = c.text[:mc.Start] + inserted + c.text[mc.End:]

	c.gen++
	c.mentionCtx = nil
	c.suggestions = nil
	c.loading = false

	if !hasMention(c.mentions, s.UserID) {
		c.mentions = append(c.mentions, s.ToMention())
	}

	return mc.Start + len(inserted)
}

// Submit validates the draft and hands the normalized payload to the submit
// callback. Whitespace-only drafts fail locally with EmptyCommentMessage and
// never reach the store. On success the draft is cleared; on failure the
// draft stays intact so the user's text is not lost, and a generic error is
// surfaced.
func (c *Composer) Submit(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	if c.submitting {
		c.mu.Unlock()
		return ErrSubmitInFlight
	}

	content := strings.TrimSpace(c.text)
	if content == "" {
		c.validationErr = EmptyCommentMessage
		c.mu.Unlock()
		return ErrEmptyComment
	}

	c.validationErr = ""
	c.submitError = ""
	c.submitting = true
	mentions := cloneMentions(c.mentions)
	c.mu.Unlock()

	err := c.submit(ctx, content, mentions)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.submitting = false
	if c.closed {
		return err
	}
	if err != nil {
		log.Error().Err(err).Msg("comment submit failed")
		c.submitError = SubmitFailedMessage
		return err
	}

	c.gen++
	c.text = ""
	c.mentions = nil
	c.mentionCtx = nil
	c.suggestions = nil
	c.loading = false
	return nil
}

// Cancel restores the draft's initial text and mentions, clears all ephemeral
// mention state and errors, and notifies the host to exit edit mode.
func (c *Composer) Cancel() {
	c.mu.Lock()
	c.gen++
	c.text = c.initialText
	c.mentions = cloneMentions(c.initialMentions)
	c.mentionCtx = nil
	c.suggestions = nil
	c.loading = false
	c.submitError = ""
	c.validationErr = ""
	onCancel := c.onCancel
	c.mu.Unlock()

	if onCancel != nil {
		onCancel()
	}
}

// Close tears the composer down. In-flight suggestion lookups are cancelled
// and any late result is discarded rather than applied to a dead composer.
func (c *Composer) Close() {
	c.mu.Lock()
	c.closed = true
	c.gen++
	c.mu.Unlock()
	c.cancel()
}

// State returns a snapshot of the composer for rendering.
func (c *Composer) State() ComposerState {
	c.mu.Lock()
	defer c.mu.Unlock()

	var mc *MentionContext
	if c.mentionCtx != nil {
		copied := *c.mentionCtx
		mc = &copied
	}

	return ComposerState{
		Phase:              c.phaseLocked(),
		Text:               c.text,
		Mentions:           cloneMentions(c.mentions),
		MentionContext:     mc,
		Suggestions:        append([]models.MentionSuggestion(nil), c.suggestions...),
		LoadingSuggestions: c.loading,
		Submitting:         c.submitting,
		SubmitError:        c.submitError,
		ValidationError:    c.validationErr,
		SubmitLabel:        c.label,
	}
}

func (c *Composer) phaseLocked() ComposerPhase {
	switch {
	case c.mentionCtx == nil:
		return PhaseIdle
	case len(c.suggestions) > 0:
		return PhaseSuggesting
	default:
		return PhaseQuerying
	}
}

func hasMention(mentions []models.Mention, userID string) bool {
	for _, m := range mentions {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

func cloneMentions(mentions []models.Mention) []models.Mention {
	if mentions == nil {
		return nil
	}
	return append([]models.Mention(nil), mentions...)
}
