package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/caat/supper/internal/config"
	"github.com/caat/supper/internal/seating"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const oooFeed = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//test//test//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:1\r\n" +
	"DTSTAMP:20240101T000000Z\r\n" +
	"SUMMARY:Annual leave\r\n" +
	"DTSTART:20240102T090000\r\n" +
	"DTEND:20240102T170000\r\n" +
	"ORGANIZER;CN=Out Of Office:mailto:ooo@example.org\r\n" +
	"ATTENDEE;CN=Alice Jones:mailto:alice@example.org\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func setup(t *testing.T) (dir string, out *bytes.Buffer, cmd *cobra.Command) {
	t.Helper()
	dir = t.TempDir()

	feed := filepath.Join(dir, "ooo.ics")
	require.NoError(t, os.WriteFile(feed, []byte(oooFeed), 0644))

	cfg := &config.Config{
		OOOEmail: "ooo@example.org",
		Users:    []string{"Bob", "alice"},
		Source:   config.SourceConfig{Type: config.SourceICS, URL: feed},
	}
	cfgFile = filepath.Join(dir, "supper.yaml")
	require.NoError(t, cfg.Save(cfgFile))

	out = &bytes.Buffer{}
	cmd = &cobra.Command{}
	cmd.SetOut(out)
	return dir, out, cmd
}

func TestRun(t *testing.T) {
	dir, out, cmd := setup(t)
	output = filepath.Join(dir, "plan-{:%Y%m%d}")

	// Saturday rolls forward to the week of 2024-01-01.
	now := time.Date(2023, 12, 30, 12, 0, 0, 0, time.Local)
	require.NoError(t, run(context.Background(), cmd, now))

	want := filepath.Join(dir, "plan-20231230.csv")
	data, err := os.ReadFile(want)
	require.NoError(t, err)
	assert.Equal(t,
		"Monday,Tuesday,Wednesday,Thursday,Friday\n"+
			"alice,,alice,alice,alice\n"+
			"bob,bob,bob,bob,bob\n",
		string(data))

	assert.Equal(t, "Created CSV seating plan for week Mon 01/01/2024 to Fri 05/01/2024 at "+want+"\n", out.String())
}

func TestRunBadOutputPattern(t *testing.T) {
	_, _, cmd := setup(t)
	output = "plan-{%Y}"
	cfgFile = filepath.Join(t.TempDir(), "missing.yaml")

	// The pattern is rejected before the config is read.
	err := run(context.Background(), cmd, time.Now())
	require.Error(t, err)
	assert.True(t, errors.Is(err, seating.ErrPathFormat))
}

func TestRunMissingConfig(t *testing.T) {
	dir, _, cmd := setup(t)
	output = filepath.Join(dir, "plan.csv")
	cfgFile = filepath.Join(dir, "missing.yaml")

	err := run(context.Background(), cmd, time.Now())
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestTemplateConfigIsComplete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "supper.yaml")
	require.NoError(t, templateConfig().Save(path))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.SourceMS365, cfg.Source.Type)
	assert.Equal(t, []string{"alice", "bob"}, cfg.Users)
}
