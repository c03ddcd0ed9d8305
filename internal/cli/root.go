// Package cli implements the recurd command line.
package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/cyp0633/librecur/internal/config"
	"github.com/cyp0633/librecur/recurrence"
	"github.com/spf13/cobra"
)

// civilLayout is accepted wherever an instant is expected and read in the
// engine zone.
const civilLayout = "2006-01-02T15:04"

// globals are the persistent flags shared by every subcommand
type globals struct {
	configPath string
	zone       string
	locale     string
	asJSON     bool
	now        func() time.Time
}

// Execute runs the root command
func Execute(version string) error {
	cmd := newRootCmd(&globals{now: time.Now})
	cmd.Version = version
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

func newRootCmd(g *globals) *cobra.Command {
	root := &cobra.Command{
		Use:   "recurd",
		Short: "recurd - recurring task scheduling",
		Long: `recurd computes occurrences of recurring tasks and serves a task planner
over HTTP.

Rules are read from a YAML or JSON document (--rule) or an RRULE (--rrule).`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "config file (YAML)")
	root.PersistentFlags().StringVar(&g.zone, "zone", "", "civil timezone, overrides engine.zone")
	root.PersistentFlags().StringVar(&g.locale, "locale", "", "description locale (pt-BR, en)")
	root.PersistentFlags().BoolVar(&g.asJSON, "json", false, "output as JSON")

	root.AddCommand(serveCmd(g))
	root.AddCommand(nextCmd(g))
	root.AddCommand(takeCmd(g))
	root.AddCommand(describeCmd(g))
	root.AddCommand(rruleCmd(g))
	root.AddCommand(agendaCmd(g))
	root.AddCommand(completeCmd(g))
	return root
}

// load reads the configuration and applies the --zone override.
func (g *globals) load() (*config.Config, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, err
	}
	if g.zone != "" {
		cfg.Engine.Zone = g.zone
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// engine builds a recurrence engine from the configuration. Commands that
// run once do not need the cache.
func (g *globals) engine(cfg *config.Config, cached bool, opts ...recurrence.EngineOption) (*recurrence.Engine, error) {
	ec, err := cfg.EngineConfig()
	if err != nil {
		return nil, err
	}
	if !cached {
		ec.CacheEnabled = false
	}
	return recurrence.NewEngineWithConfig(ec, opts...)
}

// parseInstant accepts RFC 3339 or a civil "YYYY-MM-DDTHH:MM" in zone.
func parseInstant(s string, zone *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	wall, err := time.Parse(civilLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid instant %q: want RFC 3339 or %s", s, civilLayout)
	}
	return recurrence.ToInstant(recurrence.DateOf(wall), wall.Hour(), wall.Minute(), zone), nil
}

func writeLine(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, format+"\n", args...)
}
