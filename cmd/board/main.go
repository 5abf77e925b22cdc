package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"kanban-board/board"
	"kanban-board/config"
	"kanban-board/notify"
	"kanban-board/remote"
	"kanban-board/storage"
	"kanban-board/tui"
)

var (
	// Global flags
	apiURL   string
	stateDir string
	debug    bool

	current *app
)

// app holds what every command needs once flags and env are resolved.
type app struct {
	cfg     config.CLI
	logger  *log.Logger
	slot    *storage.SQLiteSlot
	logFile *os.File
	store   *board.Store
	toaster *notify.Toaster
}

var rootCmd = &cobra.Command{
	Use:   "board",
	Short: "Single-user kanban board",
	Long: `A kanban board with three columns: To Do, In Progress and Done.

Run without arguments to open the interactive board. Without --api the
tasks live in a local simulated store that is slow and fails now and then.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if current != nil {
			current.close()
		}
		interactive := cmd == cmd.Root()
		a, err := openApp(cmd.Context(), cmd.ErrOrStderr(), interactive)
		if err != nil {
			return err
		}
		current = a
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if current != nil {
			current.close()
			current = nil
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInteractive(cmd.Context(), current)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", "", "board API base URL (default: local simulated store, env BOARD_API_URL)")
	rootCmd.PersistentFlags().StringVar(&stateDir, "state-dir", "", "directory for local state (env BOARD_STATE_DIR)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(loginCmd, logoutCmd, whoamiCmd, listCmd, addCmd, moveCmd, removeCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func openApp(ctx context.Context, stderr io.Writer, interactive bool) (*app, error) {
	cfg, err := config.LoadCLI()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if apiURL != "" {
		cfg.APIURL = apiURL
	}
	if stateDir != "" {
		cfg.StateDir = stateDir
	}
	cfg.Debug = cfg.Debug || debug
	if err := os.MkdirAll(cfg.StateDir, 0o755); err != nil {
		return nil, fmt.Errorf("state dir: %w", err)
	}

	a := &app{cfg: cfg, logger: log.New(), toaster: notify.NewToaster(notify.DefaultTTL)}
	a.logger.SetOutput(stderr)
	a.logger.SetLevel(log.WarnLevel)
	if cfg.Debug {
		a.logger.SetLevel(log.DebugLevel)
	}
	if interactive {
		// the terminal belongs to the board view
		f, err := os.OpenFile(filepath.Join(cfg.StateDir, "board.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("log file: %w", err)
		}
		a.logFile = f
		a.logger.SetOutput(f)
	}

	a.slot, err = storage.OpenSQLiteSlot(ctx, filepath.Join(cfg.StateDir, "board.db"))
	if err != nil {
		a.close()
		return nil, err
	}

	var adapter remote.Adapter
	if cfg.APIURL != "" {
		adapter = remote.NewClient(cfg.APIURL, nil)
	} else {
		opts := append(cfg.Mock.Options(), remote.WithLogger(a.logger))
		adapter = remote.NewMock(storage.NewSlotCollection(a.slot), opts...)
	}

	var notifier notify.Notifier = notify.Multi{a.toaster, notify.LogSink{Logger: a.logger}}
	if !interactive {
		notifier = notify.Multi{
			notify.Func(func(n notify.Notice) { fmt.Fprintln(stderr, n.Message) }),
			notify.LogSink{Logger: a.logger},
		}
	}
	a.store, err = board.New(ctx, adapter,
		board.WithIdentity(a.slot),
		board.WithNotifier(notifier),
		board.WithLogger(a.logger))
	if err != nil {
		a.close()
		return nil, err
	}
	a.logger.WithFields(log.Fields{
		"state_dir": cfg.StateDir,
		"api":       cfg.APIURL,
	}).Debug("board ready")
	return a, nil
}

func (a *app) close() {
	if a.slot != nil {
		if err := a.slot.Close(); err != nil {
			a.logger.WithError(err).Warn("close state db")
		}
		a.slot = nil
	}
	if a.logFile != nil {
		_ = a.logFile.Close()
		a.logFile = nil
	}
}

func runInteractive(ctx context.Context, a *app) error {
	p := tea.NewProgram(tui.New(ctx, a.store, a.toaster), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
