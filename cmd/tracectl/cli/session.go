package cli

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/majorcontext/tracectl/internal/config"
	"github.com/majorcontext/tracectl/internal/log"
	"github.com/majorcontext/tracectl/internal/sessiond"
	"github.com/majorcontext/tracectl/internal/tracker"
	"github.com/majorcontext/tracectl/internal/ui"
)

func maxArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		return usagef(cobra.MaximumNArgs(n)(cmd, args))
	}
}

func newCreateCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "create [NAME]",
		Short: "Create a tracing session",
		Long: `Create a tracing session and make it the current session.

Both domains of a new session track every process. Without NAME a name of
the form auto-YYYYMMDD-HHMMSS is generated.`,
		Args: maxArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := fmt.Sprintf("auto-%s", time.Now().Format("20060102-150405"))
			if len(args) == 1 {
				name = args[0]
			}

			store, err := e.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			if _, err := store.Create(cmd.Context(), name); err != nil {
				return fmt.Errorf("creating session: %w", err)
			}
			if err := config.SaveRC(e.dir, &config.RC{Session: name}); err != nil {
				return fmt.Errorf("setting current session: %w", err)
			}

			log.Info("session created", "session", name)
			ui.Infof("%s Session %s created", ui.OKTag(), name)
			return nil
		},
	}
}

func newDestroyCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "destroy [NAME]",
		Short: "Destroy a tracing session",
		Long: `Destroy a tracing session and its PID trackers.

Without NAME the current session is destroyed.`,
		Args: maxArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := sessionArg(e, args)
			if err != nil {
				return err
			}

			store, err := e.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Destroy(cmd.Context(), name); err != nil {
				return fmt.Errorf("destroying session: %w", err)
			}

			rc, err := config.LoadRC(e.dir)
			if err == nil && rc.Session == name {
				if err := config.SaveRC(e.dir, &config.RC{}); err != nil {
					ui.Warnf("clearing current session: %v", err)
				}
			}

			log.Info("session destroyed", "session", name)
			ui.Infof("%s Session %s destroyed", ui.OKTag(), name)
			return nil
		},
	}
}

func newSetSessionCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "set-session NAME",
		Short: "Set the current session",
		Args: func(cmd *cobra.Command, args []string) error {
			return usagef(cobra.ExactArgs(1)(cmd, args))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := e.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			if _, err := store.Get(cmd.Context(), args[0]); err != nil {
				return err
			}
			if err := config.SaveRC(e.dir, &config.RC{Session: args[0]}); err != nil {
				return fmt.Errorf("setting current session: %w", err)
			}
			ui.Infof("Session set to %s", args[0])
			return nil
		},
	}
}

func newListCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "list [NAME]",
		Short: "List sessions or show a session's trackers",
		Long: `Without NAME, list every session. With NAME, show the PID tracker of
each domain of that session.

Examples:
  tracectl list
  tracectl list mysession`,
		Args: maxArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := e.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			if len(args) == 1 {
				return showTrackers(cmd, store, args[0])
			}
			return listSessions(cmd, e, store)
		},
	}
}

func listSessions(cmd *cobra.Command, e *env, store *sessiond.Store) error {
	sessions, err := store.List(cmd.Context())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(sessions) == 0 {
		fmt.Fprintln(out, "No sessions found.")
		return nil
	}

	current, _ := config.CurrentSession(e.dir, e.cfg)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SESSION\tCREATED\tCURRENT")
	for _, s := range sessions {
		mark := ""
		if s.Name == current {
			mark = ui.Green("*")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", s.Name, humanize.Time(s.CreatedAt), mark)
	}
	return w.Flush()
}

func showTrackers(cmd *cobra.Command, store *sessiond.Store, name string) error {
	ctx := cmd.Context()
	if _, err := store.Get(ctx, name); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Session %s\n", ui.Bold(name))
	for _, d := range tracker.Domains() {
		state, err := store.Tracker(ctx, name, d)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "  %-10s PID tracker: %s\n", d.String()+":", formatTracker(state))
	}
	return nil
}

func formatTracker(state *sessiond.TrackerState) string {
	if state.All {
		return "all"
	}
	if len(state.PIDs) == 0 {
		return "none"
	}
	parts := make([]string, len(state.PIDs))
	for i, pid := range state.PIDs {
		parts[i] = fmt.Sprint(pid)
	}
	return strings.Join(parts, ", ")
}

// sessionArg returns args[0] or the current session.
func sessionArg(e *env, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	name, err := config.CurrentSession(e.dir, e.cfg)
	if errors.Is(err, config.ErrNoSession) {
		return "", usagef(err)
	}
	return name, err
}
