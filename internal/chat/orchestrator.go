// Package chat drives one chat request: prompt the model, decide what the reply
// asks for, and either create a calendar event or render business ideas.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"chatcal/internal/ideas"
	"chatcal/internal/intent"
	"chatcal/internal/models"
	"chatcal/internal/tokens"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/oauth2"
)

const (
	DefaultMaxRetries = 3
	defaultBackoff    = time.Second
)

// AuthorizationNeededMessage is returned when an event is requested by an
// identity without a stored Google token.
const AuthorizationNeededMessage = "To add events to your calendar, please authorize access to Google Calendar first by visiting /auth/google, then send your request again."

// ErrNoIdeas is the retryable failure for a reply with no recognisable idea blocks.
var ErrNoIdeas = errors.New("model reply contained no recognisable ideas")

// Model generates text for a prompt.
type Model interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

// Calendar creates events for a token holder.
type Calendar interface {
	CreateEvent(ctx context.Context, token *oauth2.Token, details models.EventDetails) (*models.Event, error)
}

// TokenStore looks up OAuth tokens by identity. It returns tokens.ErrNotFound
// when the identity never authorized.
type TokenStore interface {
	Token(ctx context.Context, identity string) (*oauth2.Token, error)
}

// Mirror receives a copy of every created event.
type Mirror interface {
	MirrorEvent(ctx context.Context, event *models.Event) error
}

// State is the terminal state of a Respond call.
type State string

const (
	StateSucceeded State = "succeeded"
	StateExhausted State = "exhausted"
)

// Request is one user message.
type Request struct {
	Persona  string
	Message  string
	Identity string
}

// Reply is the outcome of Respond. Text is always user-presentable; Err holds
// the last failure when State is StateExhausted.
type Reply struct {
	Text     string
	State    State
	Attempts int
	Err      error
}

// Orchestrator answers chat requests. It holds no per-request state and is
// safe for concurrent use.
type Orchestrator struct {
	logger         *slog.Logger
	model          Model
	calendar       Calendar
	tokens         TokenStore
	mirror         Mirror
	maxRetries     int
	backoff        time.Duration
	location       *time.Location
	personas       []Persona
	defaultPersona string
	now            func() time.Time
	sleep          func(ctx context.Context, d time.Duration) error
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithMirror copies created events to m.
func WithMirror(m Mirror) Option {
	return func(o *Orchestrator) {
		o.mirror = m
	}
}

// WithMaxRetries sets the attempt cap. Values below 1 are ignored.
func WithMaxRetries(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxRetries = n
		}
	}
}

// WithLocation sets the zone used for prompts and default event times.
func WithLocation(loc *time.Location) Option {
	return func(o *Orchestrator) {
		if loc != nil {
			o.location = loc
		}
	}
}

// WithPersonas replaces the persona list; the first entry is the default
// unless WithDefaultPersona names another.
func WithPersonas(p []Persona) Option {
	return func(o *Orchestrator) {
		if len(p) > 0 {
			o.personas = p
		}
	}
}

// WithDefaultPersona picks the persona used for unknown or empty names.
func WithDefaultPersona(name string) Option {
	return func(o *Orchestrator) {
		o.defaultPersona = name
	}
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(logger *slog.Logger, model Model, calendar Calendar, store TokenStore, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		logger:     logger,
		model:      model,
		calendar:   calendar,
		tokens:     store,
		maxRetries: DefaultMaxRetries,
		backoff:    defaultBackoff,
		location:   time.UTC,
		personas:   DefaultPersonas,
		now:        time.Now,
		sleep:      sleepContext,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Personas lists the personas Respond accepts.
func (o *Orchestrator) Personas() []Persona {
	return append([]Persona(nil), o.personas...)
}

// Respond runs up to maxRetries attempts, waiting backoff*attempt between them.
func (o *Orchestrator) Respond(ctx context.Context, req Request) Reply {
	persona := o.persona(req.Persona)
	logger := o.logger.With("persona", persona.Name, "identity", req.Identity)
	schedule := retrySchedule(o.backoff, o.maxRetries)

	var lastErr error
	attempts := 0
	for {
		attempts++
		text, outcome, err := o.attempt(ctx, logger, persona, req)
		if err == nil {
			attemptsTotal.WithLabelValues(outcome).Inc()
			requestsTotal.WithLabelValues(string(StateSucceeded)).Inc()
			logger.Info("Chat request answered", "attempts", attempts, "outcome", outcome)
			return Reply{Text: text, State: StateSucceeded, Attempts: attempts}
		}
		attemptsTotal.WithLabelValues(outcomeFailed).Inc()
		lastErr = err
		logger.Warn("Chat attempt failed", "attempt", attempts, "maxRetries", o.maxRetries, "error", err)

		wait := schedule.NextBackOff()
		if wait == backoff.Stop {
			break
		}
		if err := o.sleep(ctx, wait); err != nil {
			lastErr = err
			break
		}
	}

	requestsTotal.WithLabelValues(string(StateExhausted)).Inc()
	logger.Error("Chat request failed", "attempts", attempts, "error", lastErr)
	return Reply{
		Text:     fmt.Sprintf("Sorry, I couldn't get a valid response after %d attempts. Last error: %v", attempts, lastErr),
		State:    StateExhausted,
		Attempts: attempts,
		Err:      lastErr,
	}
}

// Attempt outcomes, used as metric labels.
const (
	outcomeIdeas      = "ideas"
	outcomeEvent      = "event"
	outcomeAuthNeeded = "auth_needed"
	outcomeFailed     = "failed"
)

func (o *Orchestrator) attempt(ctx context.Context, logger *slog.Logger, persona Persona, req Request) (string, string, error) {
	prompt := buildPrompt(persona, req.Message, o.now(), o.location)
	raw, err := o.model.GenerateContent(ctx, prompt)
	if err != nil {
		return "", "", fmt.Errorf("model call failed: %w", err)
	}

	c := intent.Classify(raw, func(reason string, err error) {
		logger.Warn(reason, "error", err)
	})
	if c.Kind == intent.KindEvent {
		return o.createEvent(ctx, logger, req.Identity, *c.Event)
	}

	res := ideas.Format(c.Text)
	if res.Status == ideas.Empty {
		return "", "", ErrNoIdeas
	}
	if res.Status == ideas.Partial {
		logger.Debug("Some idea fields could not be extracted", "ideas", len(res.Records))
	}
	return res.Text, outcomeIdeas, nil
}

func (o *Orchestrator) createEvent(ctx context.Context, logger *slog.Logger, identity string, details models.EventDetails) (string, string, error) {
	if identity == "" {
		return AuthorizationNeededMessage, outcomeAuthNeeded, nil
	}
	token, err := o.tokens.Token(ctx, identity)
	if errors.Is(err, tokens.ErrNotFound) || (err == nil && (token == nil || token.AccessToken == "")) {
		logger.Info("Calendar event requested without authorization")
		return AuthorizationNeededMessage, outcomeAuthNeeded, nil
	}
	if err != nil {
		return "", "", fmt.Errorf("token lookup failed: %w", err)
	}

	normalized := intent.NormalizeAt(details, o.location.String(), o.now())
	event, err := o.calendar.CreateEvent(ctx, token, normalized)
	if err != nil {
		return "", "", fmt.Errorf("calendar event creation failed: %w", err)
	}

	if o.mirror != nil {
		if err := o.mirror.MirrorEvent(ctx, event); err != nil {
			logger.Warn("Failed to mirror event", "id", event.ID, "error", err)
		}
	}
	return eventConfirmation(event), outcomeEvent, nil
}

func eventConfirmation(e *models.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Event created successfully! %q has been added to your calendar.", e.Summary)
	if e.Start.DateTime != "" {
		fmt.Fprintf(&b, "\nStarts: %s", e.Start.DateTime)
	}
	if e.HTMLLink != "" {
		fmt.Fprintf(&b, "\nView it here: %s", e.HTMLLink)
	}
	return b.String()
}

func (o *Orchestrator) persona(name string) Persona {
	for _, p := range o.personas {
		if strings.EqualFold(p.Name, name) {
			return p
		}
	}
	if name != "" {
		o.logger.Warn("Unknown persona, using default", "persona", name)
	}
	for _, p := range o.personas {
		if strings.EqualFold(p.Name, o.defaultPersona) {
			return p
		}
	}
	return o.personas[0]
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
