package google

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"chatcal/internal/models"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

const (
	credentialsFile   = "credentials.json"
	DefaultCalendarID = "primary"
)

// ErrUnauthorized is returned when no usable token is supplied.
var ErrUnauthorized = errors.New("google calendar: missing access token")

// CalendarClient creates and reads events in Google Calendar on behalf of a token holder.
type CalendarClient struct {
	config     *oauth2.Config
	calendarID string
	logger     *slog.Logger
	opts       []option.ClientOption
}

// NewClient creates a new Google Calendar client.
// It loads OAuth credentials from the arguments or, failing that, from credentials.json.
func NewClient(logger *slog.Logger, clientID, clientSecret, redirectURL, calendarID string, opts ...option.ClientOption) (*CalendarClient, error) {
	config, err := getOAuthConfig(clientID, clientSecret, redirectURL)
	if err != nil {
		return nil, fmt.Errorf("failed to get OAuth config: %w", err)
	}
	if calendarID == "" {
		calendarID = DefaultCalendarID
	}
	return &CalendarClient{config: config, calendarID: calendarID, logger: logger, opts: opts}, nil
}

// AuthCodeURL returns the consent page URL. Offline access is requested so a
// refresh token is issued.
func (c *CalendarClient) AuthCodeURL(state string) string {
	return c.config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades an authorization code for a token.
func (c *CalendarClient) Exchange(ctx context.Context, authCode string) (*oauth2.Token, error) {
	token, err := c.config.Exchange(ctx, authCode)
	if err != nil {
		return nil, fmt.Errorf("unable to exchange authorization code: %w", err)
	}
	return token, nil
}

func (c *CalendarClient) service(ctx context.Context, token *oauth2.Token) (*calendar.Service, error) {
	if token == nil || token.AccessToken == "" {
		return nil, ErrUnauthorized
	}
	client := c.config.Client(ctx, token)
	opts := append([]option.ClientOption{option.WithHTTPClient(client)}, c.opts...)
	service, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}
	return service, nil
}

// CreateEvent inserts a normalized event into the configured calendar.
func (c *CalendarClient) CreateEvent(ctx context.Context, token *oauth2.Token, details models.EventDetails) (*models.Event, error) {
	service, err := c.service(ctx, token)
	if err != nil {
		return nil, err
	}

	event := &calendar.Event{
		Summary:     details.Summary,
		Description: details.Description,
		Location:    details.Location,
		Start:       toEventDateTime(details.Start),
		End:         toEventDateTime(details.End),
	}

	c.logger.Debug("Creating Google Calendar event", "calendarID", c.calendarID, "summary", details.Summary)
	created, err := service.Events.Insert(c.calendarID, event).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	c.logger.Info("Created Google Calendar event", "id", created.Id, "summary", created.Summary)
	return toInternalEvent(created), nil
}

// UpcomingEvents fetches events starting within the next days.
func (c *CalendarClient) UpcomingEvents(ctx context.Context, token *oauth2.Token, days int) ([]*models.Event, error) {
	service, err := c.service(ctx, token)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("Fetching upcoming events", "calendarID", c.calendarID, "days", days)
	now := time.Now().UTC()
	tmax := now.Add(time.Duration(days) * 24 * time.Hour).Format(time.RFC3339)
	tmin := now.Format(time.RFC3339)

	events, err := service.Events.List(c.calendarID).
		ShowDeleted(false).
		SingleEvents(true).
		TimeMin(tmin).
		TimeMax(tmax).
		OrderBy("startTime").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve events: %w", err)
	}

	c.logger.Info("Fetched events from Google Calendar", "count", len(events.Items), "calendarID", c.calendarID)
	internal := make([]*models.Event, 0, len(events.Items))
	for _, item := range events.Items {
		// All-day events carry Date instead of DateTime.
		if item.Start == nil || item.Start.DateTime == "" {
			continue
		}
		internal = append(internal, toInternalEvent(item))
	}
	return internal, nil
}

// DeleteEvent removes an event from the configured calendar.
func (c *CalendarClient) DeleteEvent(ctx context.Context, token *oauth2.Token, eventID string) error {
	service, err := c.service(ctx, token)
	if err != nil {
		return err
	}
	if err := service.Events.Delete(c.calendarID, eventID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to delete event %s: %w", eventID, err)
	}
	c.logger.Info("Deleted Google Calendar event", "id", eventID)
	return nil
}

func toEventDateTime(t *models.EventTime) *calendar.EventDateTime {
	if t == nil {
		return nil
	}
	return &calendar.EventDateTime{DateTime: t.DateTime, TimeZone: t.TimeZone}
}

func toInternalEvent(item *calendar.Event) *models.Event {
	event := &models.Event{
		ID:          item.Id,
		Summary:     item.Summary,
		Description: item.Description,
		Location:    item.Location,
		HTMLLink:    item.HtmlLink,
		UID:         item.ICalUID,
	}
	if item.Start != nil {
		event.Start = models.EventTime{DateTime: item.Start.DateTime, TimeZone: item.Start.TimeZone}
	}
	if item.End != nil {
		event.End = models.EventTime{DateTime: item.End.DateTime, TimeZone: item.End.TimeZone}
	}
	return event
}

// getOAuthConfig reads credentials and returns an OAuth2 config.
// It prioritizes explicit client credentials over a local credentials.json file.
func getOAuthConfig(clientID, clientSecret, redirectURL string) (*oauth2.Config, error) {
	if clientID != "" && clientSecret != "" {
		return &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{calendar.CalendarEventsScope},
			Endpoint:     google.Endpoint,
		}, nil
	}

	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		var pathErr *fs.PathError
		if errors.As(err, &pathErr) {
			return nil, fmt.Errorf("credentials.json not found. Please provide GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET env vars or place credentials.json in the working directory")
		}
		return nil, fmt.Errorf("unable to read client secret file: %w", err)
	}

	config, err := google.ConfigFromJSON(b, calendar.CalendarEventsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse client secret file to config: %w", err)
	}
	if redirectURL != "" {
		config.RedirectURL = redirectURL
	}
	return config, nil
}
