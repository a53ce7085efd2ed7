package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/pvefleet/pvefleet/internal/config"
	"github.com/pvefleet/pvefleet/internal/executor"
	"github.com/pvefleet/pvefleet/internal/format"
	"github.com/pvefleet/pvefleet/internal/parser"
	"github.com/pvefleet/pvefleet/internal/script"
)

func newExecCmd(opts *rootOpts) *cobra.Command {
	var (
		scriptFile string
		parserName string
		jsonOut    bool
		errorsOnly bool
	)

	cmd := &cobra.Command{
		Use:   "exec [hosts...] -- <command>",
		Short: "Run a command (or a script file of commands) on every host",
		Long: `Runs one remote action per host, in host-list order, with bounded
concurrency. A failing host is reported and never stops the others.
With --script, each non-comment line of the file is one step, fanned
out across all hosts before the next step starts.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			hostArgs, command := splitHostsAndCommand(args, cmd.ArgsLenAtDash())
			if scriptFile == "" && command == "" {
				return fmt.Errorf("no command given: pass a command after -- or use --script")
			}

			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			hosts, err := opts.resolveHosts(cfg, hostArgs)
			if err != nil {
				return err
			}

			// Multi-step scripts hit every host once per step; keep one
			// connection per host instead of redialing each step.
			var (
				runner executor.Runner
				names  []string
			)
			if scriptFile != "" {
				pooled, closePool, poolNames := opts.buildPooledRunner(hosts)
				defer closePool()
				runner, names = pooled, poolNames
			} else {
				oneShot, runnerNames := opts.buildRunner(hosts)
				runner, names = oneShot, runnerNames
			}
			exec := opts.buildExecutor(cfg, runner)
			color := term.IsTerminal(int(os.Stdout.Fd()))

			var steps []script.Step
			if scriptFile != "" {
				steps, err = script.Load(scriptFile)
				if err != nil {
					return err
				}
			} else {
				steps = []script.Step{{Command: command, Line: 1}}
			}

			stepResults, err := script.New(exec, names).Run(cmd.Context(), steps)
			if err != nil {
				return err
			}

			formatter := format.NewFormatter(jsonOut || cfg.Defaults.Output == "json", errorsOnly, color)
			failed := 0
			for _, sr := range stepResults {
				if len(steps) > 1 {
					fmt.Printf("== step %d: %s\n", sr.Step.Line, sr.Step.Command)
				}
				if err := renderStep(formatter, cfg, parserName, sr, color); err != nil {
					return err
				}
				failed += sr.Results.FailedCount()
			}

			// The process exit status reflects partial failure: automated
			// callers must be able to detect it without parsing output.
			if failed > 0 {
				return fmt.Errorf("%d host action(s) failed", failed)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&scriptFile, "script", "", "file of commands to run as sequential steps")
	cmd.Flags().StringVar(&parserName, "parse", "", "parser name for tabular field extraction")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "emit results as JSON")
	cmd.Flags().BoolVar(&errorsOnly, "errors-only", false, "only show hosts with errors")

	return cmd
}

// renderStep prints one step's results as JSON, a parsed table, or grouped text.
func renderStep(f *format.Formatter, cfg *config.Config, parserName string, sr script.StepResult, color bool) error {
	if f.JSON {
		out, err := f.FormatJSON(sr.Results)
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	if parserName != "" {
		p, err := resolveParser(cfg, parserName)
		if err != nil {
			return err
		}
		fmt.Print(parser.FormatTable(p.ParseAll(sr.Results), color))
		return nil
	}

	fmt.Print(f.Format(sr.Grouped))
	return nil
}

// resolveParser looks up a parser by name: config-defined parsers override
// the built-ins.
func resolveParser(cfg *config.Config, name string) (*parser.OutputParser, error) {
	if rules, ok := cfg.Parsers[name]; ok {
		return parser.New(rules.Extract)
	}
	if p, ok := parser.BuiltinParsers()[name]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("parser %q not found", name)
}

// splitHostsAndCommand separates leading host arguments from the command.
// dashAt is cobra's ArgsLenAtDash: with a "--" terminator, everything before
// it is hosts and the words after it join into one command line. Without
// "--", the last argument is the command and multi-word commands must be
// quoted.
func splitHostsAndCommand(args []string, dashAt int) (hosts []string, command string) {
	if dashAt >= 0 {
		return args[:dashAt], strings.Join(args[dashAt:], " ")
	}
	if len(args) == 0 {
		return nil, ""
	}
	return args[:len(args)-1], args[len(args)-1]
}
