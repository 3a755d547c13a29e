// Package cli implements the tracectl command-line interface using Cobra.
// It drives the session-control service to create sessions and to add or
// remove processes from their PID trackers.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/majorcontext/tracectl/internal/config"
	"github.com/majorcontext/tracectl/internal/log"
	"github.com/majorcontext/tracectl/internal/report"
	"github.com/majorcontext/tracectl/internal/sessiond"
	"github.com/majorcontext/tracectl/internal/tracker"
	"github.com/majorcontext/tracectl/internal/ui"
)

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	verbose bool
	jsonLog bool
	mi      string
	home    string
}

// env is the state resolved once per invocation in PersistentPreRunE.
type env struct {
	flags globalFlags
	dir   string
	cfg   *config.GlobalConfig
	// mi is the report format after applying the config default.
	mi string
}

// openStore opens the session registry for this invocation.
func (e *env) openStore() (*sessiond.Store, error) {
	store, err := sessiond.OpenStore(e.cfg.DatabasePath(e.dir))
	if err != nil {
		return nil, fmt.Errorf("opening session store: %w", err)
	}
	return store, nil
}

// NewRootCmd builds the command tree. Each call returns an independent tree.
func NewRootCmd() *cobra.Command {
	e := &env{}

	root := &cobra.Command{
		Use:   "tracectl",
		Short: "tracectl - control PID trackers of tracing sessions",
		Long: `tracectl manages tracing sessions and the per-domain PID trackers that
restrict which processes a session records.

A new session traces every process. Use "tracectl untrack -k --pid --all"
to start from an empty tracker, then "tracectl track -k --pid=PID,..." to
allow specific processes.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return e.init(cmd)
		},
	}

	root.PersistentFlags().BoolVarP(&e.flags.verbose, "verbose", "v", false, "verbose output")
	root.PersistentFlags().BoolVar(&e.flags.jsonLog, "json", false, "log in JSON format")
	root.PersistentFlags().StringVar(&e.flags.mi, "mi", "", "machine interface output format (xml) (env: "+config.EnvMI+")")
	root.PersistentFlags().StringVar(&e.flags.home, "home", "", "tracectl home directory (env: "+config.EnvHome+")")

	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	root.AddCommand(
		newTrackerCmd(e, tracker.OpTrack),
		newTrackerCmd(e, tracker.OpUntrack),
		newCreateCmd(e),
		newDestroyCmd(e),
		newSetSessionCmd(e),
		newListCmd(e),
		newVersionCmd(),
	)
	return root
}

func (e *env) init(cmd *cobra.Command) error {
	ui.SetWriter(cmd.ErrOrStderr())

	e.dir = config.Dir(e.flags.home)
	cfg, err := config.LoadGlobal(e.dir)
	if err != nil {
		ui.Warnf("using default configuration: %v", err)
	}
	e.cfg = cfg

	if err := log.Init(log.Options{
		Verbose:       e.flags.verbose,
		JSONFormat:    e.flags.jsonLog,
		DebugDir:      cfg.DebugDir(e.dir),
		RetentionDays: cfg.Debug.RetentionDays,
		MaxFileSize:   cfg.DebugMaxFileSize(),
		Stderr:        cmd.ErrOrStderr(),
	}); err != nil {
		// Debug files are optional; stderr logging still works.
		ui.Warnf("failed to initialize debug logging: %v", err)
	}
	log.SetCommand(cmd.Name())

	e.mi = e.flags.mi
	if e.mi == "" {
		e.mi = cfg.MI.Format
	}
	if e.mi != "" && e.mi != report.FormatXML {
		return &usageError{err: fmt.Errorf("unsupported --mi format %q (supported: %s)", e.mi, report.FormatXML)}
	}
	return nil
}

// Execute runs the command line in os.Args and returns the process exit status.
func Execute() int {
	return run(context.Background(), NewRootCmd(), os.Args[1:], os.Stdout, os.Stderr)
}

func run(ctx context.Context, root *cobra.Command, args []string, stdout, stderr io.Writer) int {
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	ui.SetWriter(stderr)
	defer log.Close()

	cmd, err := root.ExecuteContextC(ctx)
	if err == nil {
		return ExitSuccess
	}
	if isUnknownCommand(err) {
		err = usagef(err)
	}
	reportError(cmd, err, stderr)
	return exitCodeFor(err)
}

// reportError prints err and, for usage problems, the usage of cmd.
func reportError(cmd *cobra.Command, err error, stderr io.Writer) {
	ui.Error(err.Error())
	if wantsUsage(err) && cmd != nil {
		fmt.Fprintln(stderr)
		fmt.Fprint(stderr, cmd.UsageString())
	}
}
