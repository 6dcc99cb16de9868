// Package sessionconfig loads the small amount of environment-derived
// configuration the ASHA streamer needs at process start: which adapter to
// bind when more than one controller is present, an optional peer
// allow-list, the log level, and (for local development) the capture
// device index. Nothing here is persisted — it is read once at startup.
package sessionconfig

import (
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
)

// Environment variable names this package reads.
const (
	envAdapterPath = "ASHA_ADAPTER"
	envAllowlist   = "ASHA_PEER_ALLOWLIST"
	envLogLevel    = "ASHA_LOG_LEVEL"
	envInputDevice = "ASHA_INPUT_DEVICE"
)

// Config is the process's ambient, load-once-at-startup configuration.
type Config struct {
	// AdapterPath optionally pins AdapterMonitor/PeripheralBinder to a
	// specific BlueZ adapter object path (e.g. "/org/bluez/hci1"). Empty
	// means use whatever DefaultAdapter finds.
	AdapterPath string

	// Allowlist, when non-empty, restricts PeripheralBinder to only bind
	// devices whose address appears here. Empty means bind any qualifying
	// paired device.
	Allowlist map[string]bool

	// LogLevel is the minimum level the logger emits.
	LogLevel log.Level

	// InputDevice is the portaudio device index AudioPipeline opens for
	// capture. -1 (the default) means use the host's default input device.
	InputDevice int
}

// Load reads an optional ".env" file in the working directory (missing is
// not an error) and then layers real process environment variables over
// it, returning the resulting Config.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Debug("no .env file found, using process environment only")
	}

	cfg := Config{
		AdapterPath: os.Getenv(envAdapterPath),
		Allowlist:   parseAllowlist(os.Getenv(envAllowlist)),
		LogLevel:    parseLogLevel(os.Getenv(envLogLevel)),
		InputDevice: parseInputDevice(os.Getenv(envInputDevice)),
	}
	return cfg
}

// Allows reports whether addr may be bound under this config's allow-list.
// An empty allow-list allows every address.
func (c Config) Allows(addr string) bool {
	if len(c.Allowlist) == 0 {
		return true
	}
	return c.Allowlist[strings.ToUpper(addr)]
}

func parseAllowlist(raw string) map[string]bool {
	if raw == "" {
		return nil
	}
	out := make(map[string]bool)
	for _, addr := range strings.Split(raw, ",") {
		addr = strings.ToUpper(strings.TrimSpace(addr))
		if addr != "" {
			out[addr] = true
		}
	}
	return out
}

func parseLogLevel(raw string) log.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return log.DebugLevel
	case "warn", "warning":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	case "", "info":
		return log.InfoLevel
	default:
		log.Warnf("unrecognized %s=%q, defaulting to info", envLogLevel, raw)
		return log.InfoLevel
	}
}

func parseInputDevice(raw string) int {
	if raw == "" {
		return -1
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		log.Warnf("unrecognized %s=%q, using default input device", envInputDevice, raw)
		return -1
	}
	return n
}
