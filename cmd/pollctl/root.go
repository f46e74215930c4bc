package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/tbourn/go-live-polls/internal/client"
	"github.com/tbourn/go-live-polls/internal/sysutil"
)

const defaultServer = "http://localhost:8080"

type globalOpts struct {
	server  string
	apiBase string
	verbose bool
}

func (g *globalOpts) client() *client.Client {
	return client.New(sysutil.FirstNonEmpty(g.server, os.Getenv("POLLS_URL"), defaultServer), g.apiBase)
}

func (g *globalOpts) logger(w io.Writer) zerolog.Logger {
	lvl := zerolog.WarnLevel
	if g.verbose {
		lvl = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w, NoColor: true, PartsExclude: []string{zerolog.TimestampFieldName}}).Level(lvl)
}

func newRootCmd() *cobra.Command {
	g := &globalOpts{}
	root := &cobra.Command{
		Use:           "pollctl",
		Short:         "Create, vote on and watch live polls",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&g.server, "server", "", "server URL (default $POLLS_URL or "+defaultServer+")")
	root.PersistentFlags().StringVar(&g.apiBase, "api-base", "/api", "API base path")
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "verbose logging")

	root.AddCommand(
		newCreateCmd(g),
		newGetCmd(g),
		newVoteCmd(g),
		newWatchCmd(g),
		newDeleteCmd(g),
		newMineCmd(g),
	)
	return root
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseExpiry accepts an RFC 3339 timestamp or a Go duration relative to now.
func parseExpiry(s string, now time.Time) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		t = t.UTC()
		return &t, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return nil, fmt.Errorf("expires: want RFC 3339 time or duration, got %q", s)
	}
	t := now.Add(d).UTC()
	return &t, nil
}
