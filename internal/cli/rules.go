package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/cyp0633/librecur/recurrence"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// ruleFlags name the rule and the instants a rule command works from
type ruleFlags struct {
	file   string
	rrule  string
	anchor string
	after  string
}

func (f *ruleFlags) register(cmd *cobra.Command, instants bool) {
	cmd.Flags().StringVarP(&f.file, "rule", "r", "", "rule document (YAML or JSON file, - for stdin)")
	cmd.Flags().StringVar(&f.rrule, "rrule", "", "rule as an RRULE, e.g. FREQ=WEEKLY;BYDAY=MO,WE")
	cmd.Flags().StringVarP(&f.anchor, "anchor", "a", "", "first due time of the series (default now)")
	if instants {
		cmd.Flags().StringVar(&f.after, "after", "", "list occurrences strictly after this instant (default now)")
	}
	cmd.MarkFlagsMutuallyExclusive("rule", "rrule")
	cmd.MarkFlagsOneRequired("rule", "rrule")
}

// readRule decodes a rule document. yaml.v3 reads JSON documents too.
func readRule(path string, stdin io.Reader) (recurrence.Rule, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return recurrence.Rule{}, fmt.Errorf("failed to read rule: %w", err)
	}

	var rule recurrence.Rule
	if err := yaml.Unmarshal(data, &rule); err != nil {
		return recurrence.Rule{}, err
	}
	return rule, nil
}

// ruleInput is what a rule command resolved from its flags
type ruleInput struct {
	engine *recurrence.Engine
	rule   recurrence.Rule
	anchor time.Time
	after  time.Time
}

func (g *globals) resolve(cmd *cobra.Command, f *ruleFlags) (*ruleInput, error) {
	cfg, err := g.load()
	if err != nil {
		return nil, err
	}
	engine, err := g.engine(cfg, false)
	if err != nil {
		return nil, err
	}

	in := &ruleInput{engine: engine, anchor: g.now(), after: g.now()}
	if f.anchor != "" {
		if in.anchor, err = parseInstant(f.anchor, engine.Zone()); err != nil {
			return nil, err
		}
	}
	if f.after != "" {
		if in.after, err = parseInstant(f.after, engine.Zone()); err != nil {
			return nil, err
		}
	}

	var rule recurrence.Rule
	if f.file != "" {
		rule, err = readRule(f.file, cmd.InOrStdin())
	} else {
		rule, err = recurrence.FromRRuleStringAt(f.rrule, in.anchor, engine.Zone())
	}
	if err != nil {
		return nil, err
	}
	if in.rule, err = engine.Validate(rule); err != nil {
		return nil, err
	}
	return in, nil
}

func (g *globals) printTimes(w io.Writer, zone *time.Location, times []time.Time) error {
	if g.asJSON {
		if times == nil {
			times = []time.Time{}
		}
		return json.NewEncoder(w).Encode(map[string][]time.Time{"occurrences": times})
	}
	for _, t := range times {
		local := t.In(zone)
		writeLine(w, "%s  %s", local.Format(time.RFC3339), local.Format("Mon"))
	}
	return nil
}

func nextCmd(g *globals) *cobra.Command {
	var f ruleFlags
	cmd := &cobra.Command{
		Use:   "next",
		Short: "Print the next occurrence of a rule",
		Long: `Print the first occurrence strictly after --after.

Examples:
  recurd next --rrule "FREQ=MONTHLY;BYMONTHDAY=31" --anchor 2024-01-31T09:00
  recurd next --rule weekly.yaml --after 2024-03-01T00:00 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := g.resolve(cmd, &f)
			if err != nil {
				return err
			}
			next, err := in.engine.Next(in.rule, in.anchor, in.after)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if g.asJSON {
				return json.NewEncoder(out).Encode(map[string]*time.Time{"next": next.ToPointer()})
			}
			t, ok := next.Get()
			if !ok {
				writeLine(out, "series has ended")
				return nil
			}
			writeLine(out, "%s", t.In(in.engine.Zone()).Format(time.RFC3339))
			return nil
		},
	}
	f.register(cmd, true)
	return cmd
}

func takeCmd(g *globals) *cobra.Command {
	var f ruleFlags
	var count int
	var until string
	cmd := &cobra.Command{
		Use:   "take",
		Short: "List upcoming occurrences of a rule",
		Long: `List occurrences strictly after --after: the first --count of them, or all
of them up to --until.

Examples:
  recurd take --rrule "FREQ=DAILY;INTERVAL=2" --anchor 2024-01-01T08:00 -n 5
  recurd take --rule monthly.yaml --until 2024-12-31T23:59`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := g.resolve(cmd, &f)
			if err != nil {
				return err
			}

			var times []time.Time
			if until != "" {
				end, err := parseInstant(until, in.engine.Zone())
				if err != nil {
					return err
				}
				times, err = in.engine.Between(in.rule, in.anchor, in.after.Add(time.Nanosecond), end)
				if err != nil {
					return err
				}
			} else {
				if count <= 0 {
					return errors.New("--count must be positive")
				}
				if times, err = in.engine.Take(in.rule, in.anchor, in.after, count); err != nil {
					return err
				}
			}
			return g.printTimes(cmd.OutOrStdout(), in.engine.Zone(), times)
		},
	}
	f.register(cmd, true)
	cmd.Flags().IntVarP(&count, "count", "n", 10, "number of occurrences")
	cmd.Flags().StringVar(&until, "until", "", "list every occurrence up to this instant instead")
	return cmd
}

func describeCmd(g *globals) *cobra.Command {
	var f ruleFlags
	cmd := &cobra.Command{
		Use:   "describe",
		Short: "Describe a rule in words",
		Long: `Describe a rule as a short sentence, in Brazilian Portuguese unless --locale
says otherwise.

Example:
  recurd describe --rrule "FREQ=WEEKLY;BYDAY=MO,WE,FR;COUNT=3"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := g.resolve(cmd, &f)
			if err != nil {
				return err
			}
			desc := in.engine.Describe(in.rule, g.locale)
			out := cmd.OutOrStdout()
			if g.asJSON {
				return json.NewEncoder(out).Encode(map[string]any{"rule": in.rule, "description": desc})
			}
			writeLine(out, "%s", desc)
			return nil
		},
	}
	f.register(cmd, false)
	return cmd
}

func rruleCmd(g *globals) *cobra.Command {
	var f ruleFlags
	cmd := &cobra.Command{
		Use:   "rrule",
		Short: "Convert between rule documents and RRULEs",
		Long: `Print the RRULE of a rule document, or the rule document (YAML, or JSON
with --json) of an RRULE.

Examples:
  recurd rrule --rule weekly.yaml --anchor 2024-01-01T08:00
  recurd rrule --rrule "FREQ=MONTHLY;BYMONTHDAY=-1"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := g.resolve(cmd, &f)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if f.rrule != "" {
				if g.asJSON {
					return json.NewEncoder(out).Encode(in.rule)
				}
				enc := yaml.NewEncoder(out)
				enc.SetIndent(2)
				if err := enc.Encode(in.rule); err != nil {
					return err
				}
				return enc.Close()
			}

			s, err := in.engine.RRule(in.rule, in.anchor)
			if err != nil {
				return err
			}
			if g.asJSON {
				return json.NewEncoder(out).Encode(map[string]string{"rrule": s})
			}
			writeLine(out, "%s", s)
			return nil
		},
	}
	f.register(cmd, false)
	return cmd
}
