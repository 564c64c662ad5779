// Package cmd provides the command-line interface for pulsenet.
package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/pulsenet/analysis"
	"github.com/sarchlab/pulsenet/circuit"
	"github.com/sarchlab/pulsenet/config"
	"github.com/sarchlab/pulsenet/monitoring"
	"github.com/sarchlab/pulsenet/netlist"
	"github.com/sarchlab/pulsenet/pulse"
	"github.com/sarchlab/pulsenet/tracing"
)

type flagValues struct {
	envFile     string
	logLevel    string
	traceDB     string
	trace       bool
	monitor     bool
	monitorPort int
	openBrowser bool
	pulseLimit  uint64
	maxPresses  uint64
	entry       string
}

// session holds what the persistent flags set up for a subcommand.
type session struct {
	flags flagValues

	cfg      config.Config
	logger   *slog.Logger
	monitor  *monitoring.Monitor
	recorder *tracing.SQLiteRecorder
}

// NewRootCommand creates the pulsenet command with all its subcommands.
func NewRootCommand() *cobra.Command {
	s := &session{}

	rootCmd := &cobra.Command{
		Use:   "pulsenet",
		Short: "pulsenet presses the button of a pulse circuit.",
		Long: `pulsenet loads a netlist of broadcast, flip-flop and conjunction ` +
			`modules and presses its button. It counts the pulses of a number of ` +
			`presses or finds after how many presses a sink receives a low pulse.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: s.setup,
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return s.teardown()
		},
	}

	f := rootCmd.PersistentFlags()
	f.StringVar(&s.flags.envFile, "env-file", "",
		"dotenv file with PULSENET_ variables (default .env if present)")
	f.StringVar(&s.flags.logLevel, "log-level", "info",
		"log level: debug, info, warn or error")
	f.StringVar(&s.flags.traceDB, "trace-db", "",
		"record every pulse into this SQLite database (name without .sqlite3)")
	f.BoolVar(&s.flags.trace, "trace", false,
		"record every pulse into a SQLite database with a generated name")
	f.BoolVar(&s.flags.monitor, "monitor", false,
		"serve the monitor while running")
	f.IntVar(&s.flags.monitorPort, "monitor-port", 0,
		"port of the monitor, random if 0")
	f.BoolVar(&s.flags.openBrowser, "open-browser", false,
		"open the monitor in the default browser")
	f.Uint64Var(&s.flags.pulseLimit, "pulse-limit", pulse.DefaultPulseLimit,
		"maximum pulses per press, 0 for no limit")
	f.Uint64Var(&s.flags.maxPresses, "max-presses", analysis.DefaultMaxPresses,
		"maximum presses of a period search, 0 for no limit")
	f.StringVar(&s.flags.entry, "entry", circuit.BroadcasterName,
		"module that receives the button pulse")

	rootCmd.AddCommand(
		newCountCommand(s),
		newPeriodCommand(s),
		newTraceCommand(s),
	)

	return rootCmd
}

// Execute runs the command line and exits the process. Registered exit
// handlers run before the process ends, so trace databases are flushed.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)

	err := NewRootCommand().ExecuteContext(ctx)

	stop()

	if err != nil {
		slog.Error("pulsenet failed", "error", err)
		atexit.Exit(1)
	}

	atexit.Exit(0)
}

func (s *session) setup(cmd *cobra.Command, _ []string) error {
	if err := config.LoadEnvFile(s.flags.envFile); err != nil {
		return err
	}

	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}

	if err := s.applyFlags(cmd, &cfg); err != nil {
		return err
	}

	s.cfg = cfg
	s.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(),
		&slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(s.logger)

	if cfg.Monitor {
		s.monitor = monitoring.NewMonitor().
			WithPortNumber(cfg.MonitorPort).
			WithBrowser(cfg.OpenBrowser)

		url, err := s.monitor.StartServer()
		if err != nil {
			return errors.Wrap(err, "starting monitor")
		}

		s.logger.Info("monitor started", "url", url)
	}

	if cfg.Trace {
		s.recorder = tracing.NewSQLiteRecorder(cfg.TraceDB)
		if err := s.recorder.Init(); err != nil {
			return errors.Wrap(err, "creating trace database")
		}
	}

	return nil
}

func (s *session) applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()

	if f.Changed("log-level") {
		level, err := config.ParseLevel(s.flags.logLevel)
		if err != nil {
			return err
		}

		cfg.LogLevel = level
	}

	if f.Changed("trace") {
		cfg.Trace = s.flags.trace
	}

	if f.Changed("trace-db") {
		cfg.Trace = true
		cfg.TraceDB = s.flags.traceDB
	}

	if f.Changed("monitor") {
		cfg.Monitor = s.flags.monitor
	}

	if f.Changed("monitor-port") {
		cfg.Monitor = true
		cfg.MonitorPort = s.flags.monitorPort
	}

	if f.Changed("open-browser") {
		cfg.OpenBrowser = s.flags.openBrowser
	}

	if f.Changed("entry") {
		cfg.Entry = s.flags.entry
	}

	if f.Changed("pulse-limit") {
		cfg.PulseLimit = s.flags.pulseLimit
	}

	if f.Changed("max-presses") {
		cfg.MaxPresses = s.flags.maxPresses
	}

	return nil
}

func (s *session) teardown() error {
	if s.recorder == nil {
		return nil
	}

	return s.recorder.Close()
}

func (s *session) analyzer(hooks ...pulse.Hook) *analysis.Analyzer {
	b := analysis.MakeBuilder().
		WithSchedulerBuilder(pulse.MakeBuilder().
			WithEntry(s.cfg.Entry).
			WithPulseLimit(s.cfg.PulseLimit)).
		WithMaxPresses(s.cfg.MaxPresses).
		WithMonitor(s.monitor).
		WithLogger(s.logger)

	if s.recorder != nil {
		b = b.WithHook(s.recorder)
	}

	for _, h := range hooks {
		b = b.WithHook(h)
	}

	return b.Build()
}

func (s *session) loadGraph(path string) (*circuit.Graph, error) {
	g, err := netlist.LoadGraph(path)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("netlist loaded",
		"path", path, "modules", g.Len(), "sinks", g.Sinks())

	return g, nil
}
