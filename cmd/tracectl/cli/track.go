package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/majorcontext/tracectl/internal/config"
	"github.com/majorcontext/tracectl/internal/log"
	"github.com/majorcontext/tracectl/internal/pidspec"
	"github.com/majorcontext/tracectl/internal/report"
	"github.com/majorcontext/tracectl/internal/sessiond"
	"github.com/majorcontext/tracectl/internal/tracker"
	"github.com/majorcontext/tracectl/internal/ui"
)

// errNoTracker is returned when no tracker flag (only --pid today) is given.
var errNoTracker = fmt.Errorf("specify at least one tracker with its expected arguments: %w", pidspec.ErrMissingPidSpec)

// pidNoValue is what pflag passes to Set for a bare --pid. A NUL byte cannot
// appear in a command-line argument, so no typed value collides with it.
const pidNoValue = "\x00"

func init() {
	cobra.AddTemplateFunc("pidUsage", pidUsage)
}

// pidUsage rewrites pflag's rendering of the optional --pid value,
// "--pid PIDLIST[=<marker>]", as "--pid[=PIDLIST]" with the same width.
func pidUsage(usages string) string {
	return strings.Replace(usages, " PIDLIST[="+pidNoValue+"]", "[=PIDLIST]  ", 1)
}

// pidFlag is the optional-value --pid flag. It distinguishes "not given",
// "given without a value" and "given with a value".
type pidFlag struct {
	set   bool
	value *string
}

func (p *pidFlag) String() string {
	if p.value == nil {
		return ""
	}
	return *p.value
}

func (p *pidFlag) Set(s string) error {
	p.set = true
	if s == pidNoValue {
		p.value = nil
		return nil
	}
	p.value = &s
	return nil
}

func (p *pidFlag) Type() string { return "PIDLIST" }

// trackerFlags holds the raw flag values of one track/untrack invocation.
type trackerFlags struct {
	session     string
	kernel      bool
	userspace   bool
	all         bool
	pid         pidFlag
	listOptions bool
}

// trackOptions is the validated invocation. It is built once and not
// modified afterwards.
type trackOptions struct {
	op      tracker.Operation
	session string
	domain  tracker.Domain
	pids    pidspec.Spec
	mi      string
}

func newTrackerCmd(e *env, op tracker.Operation) *cobra.Command {
	var f trackerFlags

	var short, long string
	switch op {
	case tracker.OpTrack:
		short = "Add PIDs to a session's tracker"
		long = `Add processes to the PID tracker of a session domain. Once a tracker
lists explicit PIDs, only those processes are traced.

If no session is given (-s), the current session is used. Exactly one
domain (-k or -u) must be specified.

Examples:
  tracectl track -k --pid=1234,5678
  tracectl track -u -s mysession --pid 42
  tracectl track -k --pid --all`
	case tracker.OpUntrack:
		short = "Remove PIDs from a session's tracker"
		long = `Remove processes from the PID tracker of a session domain.
"--pid --all" empties the tracker so that no process is traced.

If no session is given (-s), the current session is used. Exactly one
domain (-k or -u) must be specified.

Examples:
  tracectl untrack -k --pid=1234
  tracectl untrack -u --pid --all`
	}

	cmd := &cobra.Command{
		Use:   op.String() + " (-k|-u) --pid[=PIDLIST] [flags]",
		Short: short,
		Long:  long,
		Args: func(cmd *cobra.Command, args []string) error {
			return usagef(cobra.MaximumNArgs(1)(cmd, args))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.listOptions {
				listOptions(cmd.OutOrStdout(), cmd.LocalFlags())
				return nil
			}
			opts, err := f.options(e, op, args)
			if err != nil {
				return err
			}
			return runTracker(cmd.Context(), e, cmd.OutOrStdout(), opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&f.session, "session", "s", "", "apply to session `NAME` (default: current session)")
	flags.BoolVarP(&f.kernel, "kernel", "k", false, "apply to the kernel tracer")
	flags.BoolVarP(&f.userspace, "userspace", "u", false, "apply to the user-space tracer")
	flags.VarP(&f.pid, "pid", "p", "process ID tracker; leave the list empty with --all")
	flags.Lookup("pid").NoOptDefVal = pidNoValue
	flags.BoolVarP(&f.all, "all", "a", false, "all PIDs (use with --pid)")
	flags.BoolVar(&f.listOptions, "list-options", false, "simple listing of options")

	cmd.SetUsageTemplate(strings.Replace(cmd.UsageTemplate(),
		".LocalFlags.FlagUsages", ".LocalFlags.FlagUsages | pidUsage", 1))
	return cmd
}

// options validates the flags in order: domain, tracker selection, PID list,
// then session. Nothing here touches the session store.
func (f *trackerFlags) options(e *env, op tracker.Operation, args []string) (trackOptions, error) {
	domain, err := tracker.ResolveDomain(f.kernel, f.userspace)
	if err != nil {
		return trackOptions{}, usagef(err)
	}

	if !f.pid.set {
		return trackOptions{}, usagef(errNoTracker)
	}

	raw := f.pid.value
	if len(args) == 1 {
		// "--pid 1,2" leaves the list as a positional argument because the
		// flag value is optional.
		if raw != nil {
			return trackOptions{}, usagef(fmt.Errorf("unexpected argument %q", args[0]))
		}
		raw = &args[0]
	}

	pids, err := pidspec.Parse(raw, f.all)
	if err != nil {
		return trackOptions{}, usagef(fmt.Errorf("parsing PID list: %w", err))
	}

	session := f.session
	if session == "" {
		session, err = config.CurrentSession(e.dir, e.cfg)
		if err != nil {
			return trackOptions{}, err
		}
	}

	return trackOptions{
		op:      op,
		session: session,
		domain:  domain,
		pids:    pids,
		mi:      e.mi,
	}, nil
}

// runTracker applies opts and, when requested, writes the report to stdout.
// The returned error is the first failure: a tracker error wins over a later
// report error.
func runTracker(ctx context.Context, e *env, stdout io.Writer, opts trackOptions) error {
	store, err := e.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	var b *report.Builder
	if opts.mi != "" {
		w, err := report.NewWriter(opts.mi, stdout)
		if err != nil {
			return usagef(err)
		}
		b = report.NewBuilder(w)
		if err := openReport(b, opts.op); err != nil {
			b.Close()
			return err
		}
	}

	log.Debug("applying tracker operation",
		"op", opts.op.String(), "session", opts.session,
		"domain", opts.domain.String(), "pids", opts.pids.String())

	inv := tracker.NewInvoker(sessiond.Control{Store: store})
	res, opErr := inv.Apply(ctx, opts.op, opts.session, opts.domain, opts.pids)

	if b == nil {
		printResult(opts, res)
		return opErr
	}

	reportErr := b.WriteResult(res)
	if cerr := b.Close(); reportErr == nil {
		reportErr = cerr
	}
	if opErr != nil {
		if reportErr != nil {
			log.Warn("report incomplete", "error", reportErr)
		}
		return opErr
	}
	return reportErr
}

func openReport(b *report.Builder, op tracker.Operation) error {
	if err := b.OpenCommand(op.String()); err != nil {
		return err
	}
	return b.OpenOutput()
}

// printResult writes one line per attempted PID to stderr.
func printResult(opts trackOptions, res tracker.Result) {
	done := "tracked"
	if opts.op == tracker.OpUntrack {
		done = "untracked"
	}
	for _, a := range res.Attempts {
		target := fmt.Sprintf("PID %d", a.PID)
		if a.PID == tracker.AllPIDs {
			target = "All PIDs"
		}
		if a.Err != nil {
			ui.Infof("%s %s not %s for session %s (%s)", ui.FailTag(), target, done, opts.session, opts.domain)
			continue
		}
		ui.Infof("%s %s %s for session %s (%s)", ui.OKTag(), target, done, opts.session, opts.domain)
	}
}

// listOptions prints every option of fs, one per line, long form first.
func listOptions(w io.Writer, fs *pflag.FlagSet) {
	fs.VisitAll(func(fl *pflag.Flag) {
		fmt.Fprintf(w, "--%s\n", fl.Name)
		if fl.Shorthand != "" {
			fmt.Fprintf(w, "-%s\n", fl.Shorthand)
		}
	})
}
