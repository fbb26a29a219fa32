package icloud

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"chatcal/internal/models"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav"
	"github.com/emersion/go-webdav/caldav"
	"github.com/google/uuid"
)

const (
	iCloudCalDAVEndpoint = "https://caldav.icloud.com/"
)

// basicAuthTransport signs every CalDAV request with the app-specific password.
type basicAuthTransport struct {
	Username  string
	Password  string
	Transport http.RoundTripper
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.SetBasicAuth(t.Username, t.Password)
	req.Header.Set("User-Agent", "chatcal/1.0")
	return t.Transport.RoundTrip(req)
}

// CalDAVClient mirrors created events into a CalDAV calendar (iCloud).
type CalDAVClient struct {
	caldavClient *caldav.Client
	webdavClient *webdav.Client
	logger       *slog.Logger
	endpoint     string
	calendarURL  string
}

// NewClient creates a CalDAVClient for iCloud and resolves calendarName to its URL.
func NewClient(ctx context.Context, logger *slog.Logger, username, password, calendarName string) (*CalDAVClient, error) {
	transport := &basicAuthTransport{
		Username:  username,
		Password:  password,
		Transport: http.DefaultTransport,
	}
	httpClient := &http.Client{Transport: transport, Timeout: 30 * time.Second}

	caldavClient, err := caldav.NewClient(httpClient, iCloudCalDAVEndpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create caldav client: %w", err)
	}

	webdavClient, err := webdav.NewClient(httpClient, iCloudCalDAVEndpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create webdav client: %w", err)
	}

	c := &CalDAVClient{
		caldavClient: caldavClient,
		webdavClient: webdavClient,
		logger:       logger,
		endpoint:     iCloudCalDAVEndpoint,
	}

	logger.Info("Finding iCloud calendar", "calendarName", calendarName)
	calendarURL, err := c.findCalendar(ctx, calendarName)
	if err != nil {
		return nil, fmt.Errorf("could not find calendar '%s': %w", calendarName, err)
	}
	c.calendarURL = calendarURL
	logger.Info("Found iCloud calendar", "url", calendarURL)

	return c, nil
}

// MirrorEvent writes a copy of event into the CalDAV calendar.
func (c *CalDAVClient) MirrorEvent(ctx context.Context, event *models.Event) error {
	vevent, err := toICal(event, time.Now().UTC())
	if err != nil {
		return err
	}
	uid, _ := vevent.Props.Text(ical.PropUID)
	c.logger.Debug("Mirroring event to iCloud", "summary", event.Summary, "uid", uid)

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, "-//chatcal//EN")
	cal.Children = append(cal.Children, vevent)

	// The event path must be relative to the endpoint for the webdav client.
	eventPath := path.Join(strings.TrimPrefix(c.calendarURL, c.endpoint), uid+".ics")

	writer, err := c.webdavClient.Create(ctx, eventPath)
	if err != nil {
		return fmt.Errorf("failed to create event on CalDAV server: %w", err)
	}

	if err := ical.NewEncoder(writer).Encode(cal); err != nil {
		writer.Close()
		return fmt.Errorf("failed to encode event to iCal format: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to upload event: %w", err)
	}

	c.logger.Info("Mirrored event to iCloud", "summary", event.Summary)
	return nil
}

// toICal converts an event into a VEVENT. Events without an iCal UID get a fresh one.
func toICal(event *models.Event, stamp time.Time) (*ical.Component, error) {
	start, err := time.Parse(time.RFC3339, event.Start.DateTime)
	if err != nil {
		return nil, fmt.Errorf("invalid start time %q: %w", event.Start.DateTime, err)
	}
	end, err := time.Parse(time.RFC3339, event.End.DateTime)
	if err != nil {
		return nil, fmt.Errorf("invalid end time %q: %w", event.End.DateTime, err)
	}

	uid := event.UID
	if uid == "" {
		uid = GenerateUID()
	}

	ve := ical.NewComponent(ical.CompEvent)
	ve.Props.SetText(ical.PropUID, uid)
	ve.Props.SetText(ical.PropSummary, event.Summary)
	ve.Props.SetDateTime(ical.PropDateTimeStamp, stamp)
	ve.Props.SetDateTime(ical.PropDateTimeStart, start.UTC())
	ve.Props.SetDateTime(ical.PropDateTimeEnd, end.UTC())

	if event.Description != "" {
		ve.Props.SetText(ical.PropDescription, event.Description)
	}
	if event.Location != "" {
		ve.Props.SetText(ical.PropLocation, event.Location)
	}
	if event.HTMLLink != "" {
		ve.Props.SetText(ical.PropURL, event.HTMLLink)
	}
	return ve, nil
}

// findCalendar discovers the user's calendars and returns the URL for the one with the matching name.
func (c *CalDAVClient) findCalendar(ctx context.Context, name string) (string, error) {
	principalPath, err := c.caldavClient.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to find principal path: %w", err)
	}

	homeSetPath, err := c.caldavClient.FindCalendarHomeSet(ctx, principalPath)
	if err != nil {
		return "", fmt.Errorf("failed to find calendar home set: %w", err)
	}

	calendars, err := c.caldavClient.FindCalendars(ctx, homeSetPath)
	if err != nil {
		return "", fmt.Errorf("failed to find calendars: %w", err)
	}

	for _, cal := range calendars {
		if cal.Name == name {
			return fmt.Sprintf("%s%s", strings.TrimSuffix(c.endpoint, "/"), cal.Path), nil
		}
	}

	return "", fmt.Errorf("no calendar found with name '%s'", name)
}

// GenerateUID creates a new unique identifier for an event.
func GenerateUID() string {
	return uuid.New().String()
}
