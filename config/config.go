// Package config collects the settings of a pulsenet run from the
// environment. Command-line flags override what is read here.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"

	"github.com/sarchlab/pulsenet/analysis"
	"github.com/sarchlab/pulsenet/circuit"
	"github.com/sarchlab/pulsenet/pulse"
)

// Prefix starts the name of every variable read by FromEnv.
const Prefix = "PULSENET_"

// ErrInvalid is returned for variables that cannot be parsed.
var ErrInvalid = errors.New("config: invalid value")

// Config holds the settings of a run.
type Config struct {
	// TraceDB is the trace database name without extension. Tracing is off
	// unless Trace is set.
	Trace   bool
	TraceDB string

	Monitor     bool
	MonitorPort int
	OpenBrowser bool

	// Entry is the module that receives the button pulse.
	Entry      string
	PulseLimit uint64
	MaxPresses uint64

	LogLevel slog.Level
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		Entry:      circuit.BroadcasterName,
		PulseLimit: pulse.DefaultPulseLimit,
		MaxPresses: analysis.DefaultMaxPresses,
		LogLevel:   slog.LevelInfo,
	}
}

// LoadEnvFile adds the variables of a dotenv file to the environment.
// Variables that are already set are kept. An empty path loads .env from
// the working directory if it exists.
func LoadEnvFile(path string) error {
	if path == "" {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}

		path = ".env"
	}

	if err := godotenv.Load(path); err != nil {
		return errors.Wrapf(err, "loading %s", path)
	}

	return nil
}

// FromEnv reads the PULSENET_ variables of the process environment on top
// of the defaults.
func FromEnv() (Config, error) {
	return FromLookup(os.LookupEnv)
}

// FromLookup is FromEnv with a custom variable source.
func FromLookup(lookup func(string) (string, bool)) (Config, error) {
	c := Default()
	r := reader{lookup: lookup}

	if v, ok := r.str("TRACE_DB"); ok {
		c.Trace = true
		c.TraceDB = v
	}

	r.boolean("TRACE", &c.Trace)
	r.boolean("MONITOR", &c.Monitor)
	r.boolean("OPEN_BROWSER", &c.OpenBrowser)
	r.integer("MONITOR_PORT", &c.MonitorPort)

	if v, ok := r.str("ENTRY"); ok && v != "" {
		c.Entry = v
	}

	r.uinteger("PULSE_LIMIT", &c.PulseLimit)
	r.uinteger("MAX_PRESSES", &c.MaxPresses)

	if v, ok := r.str("LOG_LEVEL"); ok {
		level, err := ParseLevel(v)
		if err != nil && r.err == nil {
			r.err = errors.Wrapf(err, "%sLOG_LEVEL", Prefix)
		}

		if err == nil {
			c.LogLevel = level
		}
	}

	return c, r.err
}

// ParseLevel parses debug, info, warn or error, in any case.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level

	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return level, errors.Wrapf(ErrInvalid, "log level %q", s)
	}

	return level, nil
}

type reader struct {
	lookup func(string) (string, bool)
	err    error
}

func (r *reader) str(name string) (string, bool) {
	v, ok := r.lookup(Prefix + name)
	if !ok {
		return "", false
	}

	return strings.TrimSpace(v), true
}

func (r *reader) fail(name string, err error) {
	if r.err == nil {
		r.err = errors.Wrapf(ErrInvalid, "%s%s: %v", Prefix, name, err)
	}
}

func (r *reader) boolean(name string, dst *bool) {
	v, ok := r.str(name)
	if !ok {
		return
	}

	b, err := strconv.ParseBool(v)
	if err != nil {
		r.fail(name, err)
		return
	}

	*dst = b
}

func (r *reader) integer(name string, dst *int) {
	v, ok := r.str(name)
	if !ok {
		return
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		r.fail(name, err)
		return
	}

	*dst = n
}

func (r *reader) uinteger(name string, dst *uint64) {
	v, ok := r.str(name)
	if !ok {
		return
	}

	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		r.fail(name, err)
		return
	}

	*dst = n
}
