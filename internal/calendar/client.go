// Package calendar fetches upcoming events from the Google Calendar REST API
// using per-user OAuth refresh tokens.
package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	apperrors "github.com/secretaryai/secretary/pkg/errors"
)

// ServiceName identifies the calendar provider in external-service errors.
const ServiceName = "calendar"

const eventsURL = "https://www.googleapis.com/calendar/v3/calendars/%s/events"

// Settings holds the per-user parameters needed to query a calendar.
type Settings struct {
	CalendarID   string
	RefreshToken string
}

// Event is a normalized calendar entry.
type Event struct {
	ProviderID  string
	Title       string
	Description string
	Location    string
	StartsAt    time.Time
	EndsAt      time.Time
	AllDay      bool
	Status      string
}

// Fetcher retrieves upcoming events for a calendar.
type Fetcher interface {
	FetchUpcoming(ctx context.Context, settings Settings, window time.Duration) ([]Event, error)
}

// Config carries the OAuth application credentials shared by all users.
type Config struct {
	ClientID     string
	ClientSecret string
}

type googleFetcher struct {
	oauth *oauth2.Config
	// base overrides the API endpoint in tests.
	base       string
	httpClient func(ctx context.Context, token *oauth2.Token) *http.Client
}

// NewGoogleFetcher returns a Fetcher backed by the Google Calendar API.
func NewGoogleFetcher(cfg Config) Fetcher {
	oauthCfg := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{"https://www.googleapis.com/auth/calendar.readonly"},
	}

	f := &googleFetcher{oauth: oauthCfg}
	f.httpClient = func(ctx context.Context, token *oauth2.Token) *http.Client {
		return oauth2.NewClient(ctx, oauthCfg.TokenSource(ctx, token))
	}
	return f
}

func (f *googleFetcher) FetchUpcoming(ctx context.Context, settings Settings, window time.Duration) ([]Event, error) {
	if settings.CalendarID == "" || settings.RefreshToken == "" {
		return nil, nil
	}

	client := f.httpClient(ctx, &oauth2.Token{RefreshToken: settings.RefreshToken})

	now := time.Now().UTC()
	query := url.Values{}
	query.Set("timeMin", now.Format(time.RFC3339))
	query.Set("timeMax", now.Add(window).Format(time.RFC3339))
	query.Set("singleEvents", "true")
	query.Set("orderBy", "startTime")
	query.Set("maxResults", "100")

	base := f.base
	if base == "" {
		base = fmt.Sprintf(eventsURL, url.PathEscape(settings.CalendarID))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("calendar: build request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, apperrors.NewExternal(ServiceName, apperrors.ExternalUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, apperrors.NewExternal(ServiceName, apperrors.ExternalUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		kind := apperrors.ExternalUnavailable
		if resp.StatusCode == http.StatusTooManyRequests {
			kind = apperrors.ExternalRateLimited
		}
		return nil, apperrors.NewExternal(ServiceName, kind, fmt.Errorf("calendar: status %d", resp.StatusCode))
	}

	var list eventList
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, apperrors.NewExternal(ServiceName, apperrors.ExternalUnavailable, fmt.Errorf("calendar: decode response: %w", err))
	}

	events := make([]Event, 0, len(list.Items))
	for _, item := range list.Items {
		event, ok := item.toEvent()
		if !ok {
			continue
		}
		events = append(events, event)
	}

	return events, nil
}

type eventList struct {
	Items []eventItem `json:"items"`
}

type eventItem struct {
	ID          string    `json:"id"`
	Status      string    `json:"status"`
	Summary     string    `json:"summary"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	Start       eventTime `json:"start"`
	End         eventTime `json:"end"`
}

type eventTime struct {
	DateTime string `json:"dateTime"`
	Date     string `json:"date"`
}

func (i eventItem) toEvent() (Event, bool) {
	if i.ID == "" {
		return Event{}, false
	}

	event := Event{
		ProviderID:  i.ID,
		Title:       i.Summary,
		Description: i.Description,
		Location:    i.Location,
		Status:      i.Status,
	}

	var ok bool
	event.StartsAt, event.AllDay, ok = i.Start.parse()
	if !ok {
		return Event{}, false
	}
	if endsAt, _, endOK := i.End.parse(); endOK {
		event.EndsAt = endsAt
	} else {
		event.EndsAt = event.StartsAt
	}

	return event, true
}

// parse returns the event time and whether it is an all-day date.
func (t eventTime) parse() (time.Time, bool, bool) {
	if t.DateTime != "" {
		parsed, err := time.Parse(time.RFC3339, t.DateTime)
		if err != nil {
			return time.Time{}, false, false
		}
		return parsed, false, true
	}
	if t.Date != "" {
		parsed, err := time.Parse("2006-01-02", t.Date)
		if err != nil {
			return time.Time{}, false, false
		}
		return parsed, true, true
	}
	return time.Time{}, false, false
}
