package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vk/framegraph/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

func usageError(err error) error {
	return &ExitError{Code: 2, Message: err.Error()}
}

// Runner executes a validated configuration.
type Runner func(ctx context.Context, cfg *app.Config) error

// Execute runs the fgc command tree on args. Errors returned by run pass
// through unchanged; every other failure is a usage error with exit code 2.
func Execute(ctx context.Context, args []string, outW, errW io.Writer, run Runner) error {
	var runErr error
	root := NewCommand(outW, errW, func(ctx context.Context, cfg *app.Config) error {
		runErr = run(ctx, cfg)
		return runErr
	})
	if args == nil {
		// cobra falls back to os.Args for a nil slice.
		args = []string{}
	}
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if runErr != nil {
		return runErr
	}
	if err == nil {
		return nil
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return err
	}
	return usageError(err)
}

// NewCommand builds the fgc root command with its run and plan subcommands.
func NewCommand(outW, errW io.Writer, run Runner) *cobra.Command {
	cfg := app.DefaultConfig()
	var (
		vars      []string
		noPooling bool
	)

	root := &cobra.Command{
		Use:   "fgc",
		Short: "Compile and run frame graph pipelines on a simulated device",
		Long: `fgc loads a pipeline of render passes declared in HCL, compiles it into a
frame graph plan (culling passes whose results nobody reads, ordering the
rest by their resource dependencies) and executes the plan on a simulated
device that tracks transient allocations.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(outW)
	root.SetErr(errW)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError(err)
	})

	pf := root.PersistentFlags()
	pf.StringVar(&cfg.CullPolicy, "cull-policy", cfg.CullPolicy, "Fate of passes whose creations are never read. Options: 'cull' or 'keep'.")
	pf.BoolVar(&noPooling, "no-pooling", false, "Destroy released transients instead of reusing them.")
	pf.StringVar(&cfg.PlanFormat, "plan-format", cfg.PlanFormat, "Report format. Options: 'text', 'yaml' or 'json'.")
	pf.StringVar(&cfg.GraphvizPath, "graphviz", "", "Write the compiled graph in DOT format to this file.")
	pf.BoolVar(&cfg.IncludeCulled, "include-culled", false, "Draw culled passes in the DOT output.")
	pf.StringArrayVar(&vars, "var", nil, "Set a pipeline variable as NAME=VALUE. Repeatable.")
	pf.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	pf.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log output format. Options: 'text' or 'json'.")

	build := func(path string, planOnly bool) (*app.Config, error) {
		c := cfg
		c.PipelinePath = path
		c.PlanOnly = planOnly
		c.Pooling = !noPooling
		c.CullPolicy = strings.ToLower(c.CullPolicy)
		c.PlanFormat = strings.ToLower(c.PlanFormat)
		c.LogLevel = strings.ToLower(c.LogLevel)
		c.LogFormat = strings.ToLower(c.LogFormat)

		parsed, err := parseVars(vars)
		if err != nil {
			return nil, usageError(err)
		}
		c.Vars = parsed

		validated, err := app.NewConfig(c)
		if err != nil {
			return nil, usageError(err)
		}
		slog.Debug("CLI parser finished successfully.", "config", validated)
		return validated, nil
	}

	runCmd := &cobra.Command{
		Use:   "run PIPELINE",
		Short: "Compile and execute a pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := build(args[0], false)
			if err != nil {
				return err
			}
			return run(cmd.Context(), c)
		},
	}
	runCmd.Flags().IntVar(&cfg.Frames, "frames", cfg.Frames, "Number of frames to execute per generation.")
	runCmd.Flags().IntVar(&cfg.Generations, "generations", cfg.Generations, "Number of times to clear and redeclare the graph.")
	runCmd.Flags().BoolVar(&cfg.Metrics, "metrics", false, "Print execution metrics in the Prometheus text format.")

	planCmd := &cobra.Command{
		Use:   "plan PIPELINE",
		Short: "Compile a pipeline and print its plan without executing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := build(args[0], true)
			if err != nil {
				return err
			}
			return run(cmd.Context(), c)
		},
	}

	root.AddCommand(runCmd, planCmd)
	return root
}

// parseVars turns NAME=VALUE pairs into a map. A later pair overrides an
// earlier one with the same name.
func parseVars(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	vars := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --var %q: must be NAME=VALUE", pair)
		}
		vars[name] = value
	}
	return vars, nil
}
