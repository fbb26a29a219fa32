package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"chatcal/internal/models"

	"golang.org/x/oauth2"
)

// SyncState keeps track of which events have been mirrored.
// The key is the Google event ID, and the value is the iCal UID written to the mirror.
type SyncState map[string]string

// Source lists upcoming events for a token holder.
type Source interface {
	UpcomingEvents(ctx context.Context, token *oauth2.Token, days int) ([]*models.Event, error)
}

// Target receives copies of events.
type Target interface {
	MirrorEvent(ctx context.Context, event *models.Event) error
}

// Syncer backfills the mirror calendar with events created before mirroring was enabled.
type Syncer struct {
	logger    *slog.Logger
	source    Source
	target    Target
	stateFile string
	state     SyncState
	dryRun    bool
}

// NewSyncer creates a new Syncer, loading previous state from stateFile when present.
func NewSyncer(logger *slog.Logger, source Source, target Target, stateFile string, dryRun bool) (*Syncer, error) {
	state, err := loadState(stateFile)
	if err != nil {
		// If the file doesn't exist, we can start with an empty state.
		if os.IsNotExist(err) {
			logger.Info("No sync state file found, starting fresh.", "file", stateFile)
			state = make(SyncState)
		} else {
			return nil, fmt.Errorf("failed to load sync state: %w", err)
		}
	}

	return &Syncer{
		logger:    logger,
		source:    source,
		target:    target,
		stateFile: stateFile,
		state:     state,
		dryRun:    dryRun,
	}, nil
}

// Sync mirrors every upcoming event not mirrored yet and returns how many were copied.
func (s *Syncer) Sync(ctx context.Context, token *oauth2.Token, days int) (int, error) {
	s.logger.Info("Starting mirror sync.", "days", days)

	events, err := s.source.UpcomingEvents(ctx, token, days)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch google events: %w", err)
	}

	copied := 0
	for _, event := range events {
		if _, exists := s.state[event.ID]; exists {
			s.logger.Debug("Event already mirrored, skipping.", "summary", event.Summary, "id", event.ID)
			continue
		}
		if s.dryRun {
			s.logger.Info("[DRY RUN] Would mirror event", "summary", event.Summary, "start", event.Start.DateTime)
			continue
		}
		if err := s.target.MirrorEvent(ctx, event); err != nil {
			// Continue with the next event even if one fails.
			s.logger.Error("Failed to mirror event", "summary", event.Summary, "error", err)
			continue
		}
		s.state[event.ID] = event.UID
		copied++
	}

	if !s.dryRun {
		if err := s.saveState(); err != nil {
			return copied, fmt.Errorf("failed to save sync state: %w", err)
		}
	}

	s.logger.Info("Mirror sync finished.", "fetched", len(events), "mirrored", copied)
	return copied, nil
}

// loadState loads the sync state from the JSON file.
func loadState(path string) (SyncState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var state SyncState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}
	if state == nil {
		state = make(SyncState)
	}
	return state, nil
}

// saveState saves the current sync state to the JSON file.
func (s *Syncer) saveState() error {
	data, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal sync state: %w", err)
	}
	return os.WriteFile(s.stateFile, data, 0o644)
}
