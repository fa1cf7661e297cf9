// Package sync fetches out-of-office events from the configured source.
package sync

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/caat/supper/internal/auth"
	"github.com/caat/supper/internal/calendar"
	"github.com/caat/supper/internal/config"
	"github.com/caat/supper/internal/filter"
)

// Syncer pairs a calendar source with its filter.
type Syncer struct {
	source calendar.Source
	filter *filter.Filter
}

// NewSyncer creates a Syncer from configuration. For Microsoft 365 sources
// this signs in, which may prompt for consent on the terminal.
func NewSyncer(ctx context.Context, cfg *config.Config) (*Syncer, error) {
	f, err := filter.New(cfg.Filters)
	if err != nil {
		return nil, fmt.Errorf("filters: %w", err)
	}

	src, err := createSource(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return &Syncer{source: src, filter: f}, nil
}

// Source returns the underlying calendar source.
func (s *Syncer) Source() calendar.Source {
	return s.source
}

// Sync fetches the events matching q, applies the filter and returns them
// ordered by start time.
func (s *Syncer) Sync(ctx context.Context, q calendar.Query) ([]calendar.Event, error) {
	name := s.source.Name()
	slog.Debug("fetching source", "name", name, "address", q.Address, "start", q.Start, "end", q.End)

	events, err := s.source.Fetch(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", name, err)
	}

	fetched := len(events)
	if s.filter != nil {
		events = s.filter.Apply(events)
	}

	slices.SortStableFunc(events, func(a, b calendar.Event) int {
		return cmp.Compare(a.Start.UnixNano(), b.Start.UnixNano())
	})

	slog.Info("fetched source", "name", name, "fetched", fetched, "after_filter", len(events))
	return events, nil
}

// createSource creates the calendar source named by cfg.Source.Type.
func createSource(ctx context.Context, cfg *config.Config) (calendar.Source, error) {
	switch cfg.Source.Type {
	case config.SourceICS:
		password, err := cfg.Source.GetPassword()
		if err != nil {
			return nil, err
		}
		return calendar.NewICSSource(config.SourceICS, cfg.Source.URL, cfg.Source.Username, password), nil

	case config.SourceCalDAV:
		password, err := cfg.Source.GetPassword()
		if err != nil {
			return nil, err
		}
		return calendar.NewCalDAVSource(config.SourceCalDAV, cfg.Source.URL, cfg.Source.Username, password, cfg.Source.Calendars), nil

	case config.SourceMS365, "":
		a, err := NewAuthenticator(cfg)
		if err != nil {
			return nil, err
		}
		token, err := a.Authenticate(ctx)
		if err != nil {
			return nil, err
		}
		return calendar.NewGraphSource(config.SourceMS365, cfg.GraphURL, token.Client(ctx)), nil

	default:
		return nil, fmt.Errorf("%w: unknown source type %q", config.ErrInvalid, cfg.Source.Type)
	}
}

// NewAuthenticator creates the Microsoft 365 authenticator for cfg. Tokens
// are kept in cfg.TokenPath and checked against the Graph /me endpoint.
func NewAuthenticator(cfg *config.Config) (*auth.Authenticator, error) {
	return auth.NewAuthenticator(auth.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TenantID:     cfg.TenantID,
		RedirectURI:  cfg.RedirectURI,
	}, auth.NewFileStore(cfg.TokenPath), func(ctx context.Context, token *auth.Token) error {
		return calendar.NewGraphSource(config.SourceMS365, cfg.GraphURL, token.Client(ctx)).Ping(ctx)
	})
}
