package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/smart-alarm/internal/cmdline"
	"github.com/oshokin/smart-alarm/internal/logger"
)

// Config holds the device runtime settings shared by both binaries.
type Config struct {
	// Transport selects and configures the command console link.
	Transport TransportConfig `yaml:"transport"`
	// Output selects the backend that drives the physical outputs.
	Output OutputConfig `yaml:"output"`
	// Tone enables frequency synthesis on the alarm output.
	Tone ToneConfig `yaml:"tone"`
	// Tick is the state machine period. It must divide one second in whole milliseconds.
	Tick time.Duration `yaml:"tick"`
	// PollInterval is how often the foreground loop polls the transport.
	PollInterval time.Duration `yaml:"poll_interval"`
	// SelfTestPause is the pause between the steps of the test command; negative disables it.
	SelfTestPause time.Duration `yaml:"self_test_pause"`
	// ExitHaltsTicks stops the tick source too when the exit command runs.
	ExitHaltsTicks bool `yaml:"exit_halts_ticks"`
	// MatchMode is "first-char" (default) or "exact".
	MatchMode string `yaml:"match_mode"`
	// LogLevel is re-applied whenever the file changes.
	LogLevel string `yaml:"log_level"`
	// RemoteAddress is the gRPC remote console address; empty disables it on the device.
	RemoteAddress string `yaml:"remote_addr"`
	// Timeout is the per-call timeout of the remote console client.
	Timeout time.Duration `yaml:"timeout"`
	// ExecTimeout bounds one remote command line, which may run the whole self-test.
	ExecTimeout time.Duration `yaml:"exec_timeout"`
}

// TransportConfig describes the console link.
type TransportConfig struct {
	// Kind is one of "stdio", "serial" or "websocket".
	Kind string `yaml:"kind"`
	// Port is the serial device path.
	Port string `yaml:"port"`
	// Baud is the serial baud rate.
	Baud int `yaml:"baud"`
	// URL is the ws:// or wss:// address of a serial bridge.
	URL string `yaml:"url"`
	// Username enables HTTP basic auth on the websocket; the password comes from the environment.
	Username string `yaml:"username"`
	// NoSSLVerify skips certificate verification for wss://.
	NoSSLVerify bool `yaml:"no_ssl_verify"`
	// Echo writes received characters back to the link.
	Echo bool `yaml:"echo"`
}

// OutputConfig selects the output backend.
type OutputConfig struct {
	// Backend is one of "console", "memory" or "modbus".
	Backend string `yaml:"backend"`
	// Modbus configures the modbus backend.
	Modbus ModbusConfig `yaml:"modbus"`
}

// ModbusConfig maps outputs onto a Modbus TCP I/O module.
type ModbusConfig struct {
	Endpoint          string        `yaml:"endpoint"`
	UnitID            uint8         `yaml:"unit_id"`
	Timeout           time.Duration `yaml:"timeout"`
	AlarmCoil         uint16        `yaml:"alarm_coil"`
	AuxCoil           uint16        `yaml:"aux_coil"`
	IndicatorRegister uint16        `yaml:"indicator_register"`
	CompareRegister   uint16        `yaml:"compare_register"`
	DutyRegister      uint16        `yaml:"duty_register"`
}

// ToneConfig configures frequency synthesis.
type ToneConfig struct {
	// Enabled drives the alarm output through the tone generator.
	Enabled bool `yaml:"enabled"`
	// ClockHz is the tone timer clock.
	ClockHz uint32 `yaml:"clock_hz"`
	// FrequencyHz is the tone programmed at start.
	FrequencyHz int `yaml:"frequency_hz"`
}

// Transport kinds.
const (
	TransportStdio     = "stdio"
	TransportSerial    = "serial"
	TransportWebSocket = "websocket"
)

// Output backends.
const (
	BackendConsole = "console"
	BackendMemory  = "memory"
	BackendModbus  = "modbus"
)

const (
	// DefaultConfigFilename is the default filename for device settings.
	DefaultConfigFilename = "smart-alarm.yaml"

	// DefaultTimeout is the default duration for remote console calls.
	DefaultTimeout = 5 * time.Second

	// DefaultExecTimeout is the shortest default bound of a remote command line.
	DefaultExecTimeout = 30 * time.Second

	// SelfTestPauses is the number of pauses the test command waits through.
	SelfTestPauses = 4

	// DefaultTick is the default state machine period.
	DefaultTick = 10 * time.Millisecond

	// DefaultPollInterval is the default transport polling period.
	DefaultPollInterval = time.Millisecond

	// DefaultSelfTestPause is the pause between self-test steps.
	DefaultSelfTestPause = 3 * time.Second

	// DefaultBaud matches the firmware UART setting.
	DefaultBaud = 9600

	// DefaultToneClockHz is a 12 MHz CPU clock behind a /8 prescaler.
	DefaultToneClockHz = 1_500_000

	// DefaultToneFrequencyHz is the tone programmed at start.
	DefaultToneFrequencyHz = 440

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errUnknownTransport is returned for an unsupported transport kind.
	errUnknownTransport = errors.New("unknown transport kind")
	// errSerialPortRequired is returned when the serial transport has no port.
	errSerialPortRequired = errors.New("serial port must be provided")
	// errURLRequired is returned when the websocket transport has no URL.
	errURLRequired = errors.New("websocket url must be provided")
	// errUnknownBackend is returned for an unsupported output backend.
	errUnknownBackend = errors.New("unknown output backend")
	// errModbusEndpointRequired is returned when the modbus backend has no endpoint.
	errModbusEndpointRequired = errors.New("modbus endpoint must be provided")
	// errInvalidTick is returned when the tick does not divide one second in whole milliseconds.
	errInvalidTick = errors.New("tick must be a whole number of milliseconds dividing 1s")
	// errUnknownMatchMode is returned for an unsupported match mode.
	errUnknownMatchMode = errors.New("unknown match mode")
	// errUnknownLogLevel is returned for an unsupported log level.
	errUnknownLogLevel = errors.New("unknown log level")
)

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := new(Config)

	// Defaults always validate.
	_ = Validate(cfg)

	return cfg
}

// Load reads configuration from the provided path and validates essential fields.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadOrDefault is Load, except that a missing default settings file yields Default().
// A missing explicitly named file is still an error.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)

	switch {
	case err == nil:
		return cfg, nil
	case errors.Is(err, os.ErrNotExist) && (path == "" || path == DefaultConfigFilename):
		return Default(), nil
	default:
		return nil, err
	}
}

// Save writes settings to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks the provided settings and fills in defaults.
//
//nolint:cyclop // A flat list of field checks reads better than helpers per field.
func Validate(settings *Config) error {
	if settings == nil {
		return errConfigIsNotSet
	}

	if err := validateTransport(&settings.Transport); err != nil {
		return err
	}

	if err := validateOutput(&settings.Output); err != nil {
		return err
	}

	if settings.Tick == 0 {
		settings.Tick = DefaultTick
	}

	if settings.Tick < 0 || settings.Tick%time.Millisecond != 0 || time.Second%settings.Tick != 0 {
		return fmt.Errorf("%s: %w", settings.Tick, errInvalidTick)
	}

	if settings.PollInterval <= 0 {
		settings.PollInterval = DefaultPollInterval
	}

	// Negative disables the pause.
	if settings.SelfTestPause == 0 {
		settings.SelfTestPause = DefaultSelfTestPause
	}

	if _, ok := cmdline.ParseMatchMode(settings.MatchMode); !ok {
		return fmt.Errorf("%q: %w", settings.MatchMode, errUnknownMatchMode)
	}

	if settings.LogLevel != "" {
		if _, ok := logger.ParseLogLevel(settings.LogLevel); !ok {
			return fmt.Errorf("%q: %w", settings.LogLevel, errUnknownLogLevel)
		}
	}

	if settings.RemoteAddress != "" {
		if _, err := net.ResolveTCPAddr("tcp", settings.RemoteAddress); err != nil {
			return fmt.Errorf("invalid remote console address: %w", err)
		}
	}

	// Set default timeout if not specified
	if settings.Timeout <= 0 {
		settings.Timeout = DefaultTimeout
	}

	// A remote self-test must fit, whatever pause is configured.
	if settings.ExecTimeout <= 0 {
		settings.ExecTimeout = max(DefaultExecTimeout, settings.Timeout+SelfTestPauses*max(settings.SelfTestPause, 0))
	}

	if settings.Tone.ClockHz == 0 {
		settings.Tone.ClockHz = DefaultToneClockHz
	}

	if settings.Tone.FrequencyHz <= 0 {
		settings.Tone.FrequencyHz = DefaultToneFrequencyHz
	}

	return nil
}

func validateTransport(t *TransportConfig) error {
	t.Kind = strings.ToLower(strings.TrimSpace(t.Kind))
	if t.Kind == "" {
		t.Kind = TransportStdio
	}

	if t.Baud <= 0 {
		t.Baud = DefaultBaud
	}

	switch t.Kind {
	case TransportStdio:
		return nil
	case TransportSerial:
		if t.Port == "" {
			return errSerialPortRequired
		}

		return nil
	case TransportWebSocket:
		if t.URL == "" {
			return errURLRequired
		}

		return nil
	default:
		return fmt.Errorf("%q: %w", t.Kind, errUnknownTransport)
	}
}

func validateOutput(o *OutputConfig) error {
	o.Backend = strings.ToLower(strings.TrimSpace(o.Backend))
	if o.Backend == "" {
		o.Backend = BackendConsole
	}

	switch o.Backend {
	case BackendConsole, BackendMemory:
		return nil
	case BackendModbus:
		if o.Modbus.Endpoint == "" {
			return errModbusEndpointRequired
		}

		if o.Modbus.Timeout <= 0 {
			o.Modbus.Timeout = DefaultTimeout
		}

		return nil
	default:
		return fmt.Errorf("%q: %w", o.Backend, errUnknownBackend)
	}
}
