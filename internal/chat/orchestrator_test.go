package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"chatcal/internal/models"
	"chatcal/internal/tokens"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type modelReply struct {
	text string
	err  error
}

type fakeModel struct {
	mu      sync.Mutex
	replies []modelReply
	prompts []string
}

func (m *fakeModel) GenerateContent(_ context.Context, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = append(m.prompts, prompt)
	if len(m.replies) == 0 {
		return "", errors.New("no scripted reply")
	}
	r := m.replies[0]
	if len(m.replies) > 1 {
		m.replies = m.replies[1:]
	}
	return r.text, r.err
}

type fakeCalendar struct {
	mu      sync.Mutex
	err     error
	created []models.EventDetails
	tokens  []*oauth2.Token
}

func (c *fakeCalendar) CreateEvent(_ context.Context, token *oauth2.Token, d models.EventDetails) (*models.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.created = append(c.created, d)
	c.tokens = append(c.tokens, token)
	if c.err != nil {
		return nil, c.err
	}
	return &models.Event{
		ID:       "evt1",
		Summary:  d.Summary,
		Start:    *d.Start,
		End:      *d.End,
		HTMLLink: "https://calendar.google.com/event?eid=evt1",
	}, nil
}

type fakeStore map[string]*oauth2.Token

func (s fakeStore) Token(_ context.Context, identity string) (*oauth2.Token, error) {
	tok, ok := s[identity]
	if !ok {
		return nil, tokens.ErrNotFound
	}
	return tok, nil
}

type fakeMirror struct {
	err    error
	events []*models.Event
}

func (m *fakeMirror) MirrorEvent(_ context.Context, e *models.Event) error {
	m.events = append(m.events, e)
	return m.err
}

type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	return ctx.Err()
}

var fixedNow = time.Date(2025, 8, 9, 10, 0, 0, 0, time.UTC)

func newTestOrchestrator(model Model, cal Calendar, store TokenStore, opts ...Option) (*Orchestrator, *sleepRecorder) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	o := NewOrchestrator(logger, model, cal, store, opts...)
	rec := &sleepRecorder{}
	o.sleep = rec.sleep
	o.now = func() time.Time { return fixedNow }
	return o, rec
}

const lunchReply = "```json\n" + `{"type":"calendar_event","eventDetails":{
  "summary":"Lunch with Sam","description":"Lunch",
  "start":{"dateTime":"20250810T120000-0700","timeZone":"America/Los_Angeles"},
  "end":{"dateTime":"20250810T130000-0700","timeZone":"America/Los_Angeles"}}}` + "\n```"

func threeIdeas() string {
	var b strings.Builder
	for i, name := range []string{"PlantPal", "DeskDash", "MealMate"} {
		fmt.Fprintf(&b, "%d. Idea Name: %s\nConcept: c\nKey Features: k\nTarget Market: t\n"+
			"Unique Value Proposition: u\nMonetization: m\nPotential Challenges/Considerations: p\nSummary: s\n\n", i+1, name)
	}
	return b.String()
}

func TestRespondFormatsIdeas(t *testing.T) {
	model := &fakeModel{replies: []modelReply{{text: threeIdeas()}}}
	cal := &fakeCalendar{}
	o, rec := newTestOrchestrator(model, cal, fakeStore{})

	reply := o.Respond(context.Background(), Request{Persona: "Tech Innovator", Message: "Ideas for pet owners", Identity: "u1"})

	assert.Equal(t, StateSucceeded, reply.State)
	assert.Equal(t, 1, reply.Attempts)
	assert.Contains(t, reply.Text, "1. PlantPal")
	assert.Contains(t, reply.Text, "3. MealMate")
	assert.NoError(t, reply.Err)
	assert.Empty(t, rec.delays)
	assert.Empty(t, cal.created)

	require.Len(t, model.prompts, 1)
	assert.Contains(t, model.prompts[0], "You are Tech Innovator")
	assert.Contains(t, model.prompts[0], "Ideas for pet owners")
	assert.Contains(t, model.prompts[0], "Saturday, 2025-08-09")
}

func TestRespondCreatesEvent(t *testing.T) {
	model := &fakeModel{replies: []modelReply{{text: lunchReply}}}
	cal := &fakeCalendar{}
	mirror := &fakeMirror{}
	token := &oauth2.Token{AccessToken: "access"}
	o, _ := newTestOrchestrator(model, cal, fakeStore{"u1": token}, WithMirror(mirror))

	reply := o.Respond(context.Background(), Request{Message: "Schedule lunch with Sam tomorrow at noon", Identity: "u1"})

	assert.Equal(t, StateSucceeded, reply.State)
	assert.Equal(t, 1, reply.Attempts)
	assert.Contains(t, reply.Text, "Lunch with Sam")
	assert.Contains(t, reply.Text, "https://calendar.google.com/event?eid=evt1")

	require.Len(t, cal.created, 1)
	assert.Same(t, token, cal.tokens[0])
	assert.Equal(t, "2025-08-10T12:00:00-0700", cal.created[0].Start.DateTime)
	assert.Equal(t, "2025-08-10T13:00:00-0700", cal.created[0].End.DateTime)
	require.Len(t, mirror.events, 1)
	assert.Equal(t, "evt1", mirror.events[0].ID)
}

func TestRespondMirrorFailureIsIgnored(t *testing.T) {
	model := &fakeModel{replies: []modelReply{{text: lunchReply}}}
	o, _ := newTestOrchestrator(model, &fakeCalendar{}, fakeStore{"u1": {AccessToken: "a"}},
		WithMirror(&fakeMirror{err: errors.New("caldav down")}))

	reply := o.Respond(context.Background(), Request{Message: "lunch", Identity: "u1"})
	assert.Equal(t, StateSucceeded, reply.State)
	assert.Equal(t, 1, reply.Attempts)
}

func TestRespondEventDefaultsTimes(t *testing.T) {
	raw := "```json\n{\"type\":\"calendar_event\",\"eventDetails\":{\"summary\":\"Call mom\"}}\n```"
	cal := &fakeCalendar{}
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	o, _ := newTestOrchestrator(&fakeModel{replies: []modelReply{{text: raw}}}, cal,
		fakeStore{"u1": {AccessToken: "a"}}, WithLocation(loc))

	reply := o.Respond(context.Background(), Request{Message: "call mom", Identity: "u1"})
	require.Equal(t, StateSucceeded, reply.State)
	require.Len(t, cal.created, 1)
	assert.Equal(t, "2025-08-10T09:00:00-04:00", cal.created[0].Start.DateTime)
	assert.Equal(t, "2025-08-10T10:00:00-04:00", cal.created[0].End.DateTime)
	assert.Equal(t, "America/New_York", cal.created[0].Start.TimeZone)
}

func TestRespondWithoutAuthorization(t *testing.T) {
	for name, store := range map[string]fakeStore{
		"no token":     {},
		"empty access": {"u1": {RefreshToken: "r"}},
	} {
		t.Run(name, func(t *testing.T) {
			model := &fakeModel{replies: []modelReply{{text: lunchReply}}}
			cal := &fakeCalendar{}
			o, rec := newTestOrchestrator(model, cal, store)

			reply := o.Respond(context.Background(), Request{Message: "Schedule lunch with Sam tomorrow at noon", Identity: "u1"})

			assert.Equal(t, StateSucceeded, reply.State)
			assert.Equal(t, 1, reply.Attempts)
			assert.Equal(t, AuthorizationNeededMessage, reply.Text)
			assert.Empty(t, cal.created)
			assert.Empty(t, rec.delays)
		})
	}

	o, _ := newTestOrchestrator(&fakeModel{replies: []modelReply{{text: lunchReply}}}, &fakeCalendar{}, fakeStore{})
	reply := o.Respond(context.Background(), Request{Message: "lunch"})
	assert.Equal(t, AuthorizationNeededMessage, reply.Text)
}

func TestRespondRetriesWithLinearBackoff(t *testing.T) {
	model := &fakeModel{replies: []modelReply{
		{err: errors.New("503 from model")},
		{err: errors.New("timeout")},
		{text: threeIdeas()},
	}}
	o, rec := newTestOrchestrator(model, &fakeCalendar{}, fakeStore{})

	reply := o.Respond(context.Background(), Request{Message: "ideas"})

	assert.Equal(t, StateSucceeded, reply.State)
	assert.Equal(t, 3, reply.Attempts)
	assert.Contains(t, reply.Text, "1. PlantPal")
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, rec.delays)
}

func TestRespondExhaustsRetries(t *testing.T) {
	model := &fakeModel{replies: []modelReply{{err: errors.New("model unavailable")}}}
	o, rec := newTestOrchestrator(model, &fakeCalendar{}, fakeStore{})

	reply := o.Respond(context.Background(), Request{Message: "ideas"})

	assert.Equal(t, StateExhausted, reply.State)
	assert.Equal(t, 3, reply.Attempts)
	assert.Contains(t, reply.Text, "after 3 attempts")
	assert.Contains(t, reply.Text, "model unavailable")
	assert.ErrorContains(t, reply.Err, "model unavailable")
	assert.Len(t, model.prompts, 3)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, rec.delays)
}

func TestRespondRetriesWhenNoIdeasFound(t *testing.T) {
	model := &fakeModel{replies: []modelReply{
		{text: "Sorry, could you rephrase?"},
		{text: threeIdeas()},
	}}
	o, rec := newTestOrchestrator(model, &fakeCalendar{}, fakeStore{})

	reply := o.Respond(context.Background(), Request{Message: "ideas"})
	assert.Equal(t, StateSucceeded, reply.State)
	assert.Equal(t, 2, reply.Attempts)
	assert.Equal(t, []time.Duration{time.Second}, rec.delays)

	model = &fakeModel{replies: []modelReply{{text: "no ideas here"}}}
	o, _ = newTestOrchestrator(model, &fakeCalendar{}, fakeStore{}, WithMaxRetries(2))
	reply = o.Respond(context.Background(), Request{Message: "ideas"})
	assert.Equal(t, StateExhausted, reply.State)
	assert.Equal(t, 2, reply.Attempts)
	assert.ErrorIs(t, reply.Err, ErrNoIdeas)
}

func TestRespondRetriesCalendarErrors(t *testing.T) {
	model := &fakeModel{replies: []modelReply{{text: lunchReply}}}
	cal := &fakeCalendar{err: errors.New("invalid_grant")}
	o, _ := newTestOrchestrator(model, cal, fakeStore{"u1": {AccessToken: "a"}})

	reply := o.Respond(context.Background(), Request{Message: "lunch", Identity: "u1"})
	assert.Equal(t, StateExhausted, reply.State)
	assert.Len(t, cal.created, 3)
	assert.Contains(t, reply.Text, "invalid_grant")
}

func TestRespondMalformedEventFallsBackToIdeas(t *testing.T) {
	raw := "```json\n{\"type\":\"calendar_event\", broken\n```\n" + threeIdeas()
	cal := &fakeCalendar{}
	o, _ := newTestOrchestrator(&fakeModel{replies: []modelReply{{text: raw}}}, cal, fakeStore{"u1": {AccessToken: "a"}})

	reply := o.Respond(context.Background(), Request{Message: "x", Identity: "u1"})
	assert.Equal(t, StateSucceeded, reply.State)
	assert.Contains(t, reply.Text, "2. DeskDash")
	assert.Empty(t, cal.created)
}

func TestRespondStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	model := &fakeModel{replies: []modelReply{{err: errors.New("boom")}}}
	o, _ := newTestOrchestrator(model, &fakeCalendar{}, fakeStore{})

	reply := o.Respond(ctx, Request{Message: "ideas"})
	assert.Equal(t, StateExhausted, reply.State)
	assert.Equal(t, 1, reply.Attempts)
	assert.ErrorIs(t, reply.Err, context.Canceled)
}

func TestPersonaSelection(t *testing.T) {
	o, _ := newTestOrchestrator(&fakeModel{}, &fakeCalendar{}, fakeStore{})
	assert.Equal(t, "Business Strategist", o.persona("business strategist").Name)
	assert.Equal(t, "Idea Generator", o.persona("").Name)
	assert.Equal(t, "Idea Generator", o.persona("Pirate").Name)

	o, _ = newTestOrchestrator(&fakeModel{}, &fakeCalendar{}, fakeStore{}, WithDefaultPersona("Tech Innovator"))
	assert.Equal(t, "Tech Innovator", o.persona("Pirate").Name)
	assert.Len(t, o.Personas(), len(DefaultPersonas))
}

func TestRespondConcurrentRequests(t *testing.T) {
	model := &fakeModel{replies: []modelReply{{text: threeIdeas()}}}
	o, _ := newTestOrchestrator(model, &fakeCalendar{}, fakeStore{})

	var wg sync.WaitGroup
	replies := make([]Reply, 8)
	for i := range replies {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			replies[i] = o.Respond(context.Background(), Request{Message: "ideas", Identity: fmt.Sprintf("u%d", i)})
		}(i)
	}
	wg.Wait()

	for _, r := range replies {
		assert.Equal(t, StateSucceeded, r.State)
		assert.Equal(t, 1, r.Attempts)
	}
}
