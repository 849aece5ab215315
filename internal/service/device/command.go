package device

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"

	"github.com/google/uuid"
	"google.golang.org/grpc"

	"github.com/oshokin/smart-alarm/internal/api/grpc/console"
	"github.com/oshokin/smart-alarm/internal/config"
	"github.com/oshokin/smart-alarm/internal/hal"
	"github.com/oshokin/smart-alarm/internal/logger"
	"github.com/oshokin/smart-alarm/internal/transport"
	"github.com/oshokin/smart-alarm/internal/version"
)

// Options controls the smart-alarm process and configuration.
type Options struct {
	// ConfigPath specifies the path to settings YAML file.
	// A missing file at the default path falls back to defaults.
	ConfigPath string
	// Config replaces the settings file when set; the file watcher is not started.
	Config *config.Config
	// Port overrides the transport with a serial port.
	Port string
	// Baud overrides the serial baud rate.
	Baud int
	// URL overrides the transport with a websocket bridge.
	URL string
	// ListenAddress overrides the remote console listen address.
	ListenAddress string
	// Listener serves the remote console instead of listening on an address.
	Listener net.Listener
	// Transport replaces the configured console link.
	Transport transport.Transport
	// Backend replaces the configured output backend.
	Backend hal.Backend
	// SingleInstance refuses to start when another smart-alarm process is running.
	SingleInstance bool
}

var (
	// ErrNoServerAddress indicates missing remote console configuration.
	ErrNoServerAddress = errors.New("no remote console address configured")
	// errOptionsRequired is returned when Run is called without options.
	errOptionsRequired = errors.New("options must be provided")
)

// Run starts the device and blocks until ctx is canceled, or until the
// foreground loop ends when ticks halt with it.
//
//nolint:funlen // Startup and shutdown ordering reads best in one place.
func Run(ctx context.Context, opts *Options) error {
	if opts == nil {
		return errOptionsRequired
	}

	bootID := uuid.NewString()

	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "smart-alarm")
	ctx = logger.WithKV(ctx, "boot_id", bootID)

	if opts.SingleInstance {
		if err := ensureSingleInstance(); err != nil {
			return err
		}
	}

	settings, watchPath, err := loadSettings(opts)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	applyLogLevel(ctx, settings.LogLevel)

	backend, closeBackend, err := openBackend(settings, opts)
	if err != nil {
		return fmt.Errorf("open outputs: %w", err)
	}

	defer closeBackend()

	link := opts.Transport
	if link == nil {
		if link, err = openTransport(ctx, &settings.Transport); err != nil {
			return fmt.Errorf("open console: %w", err)
		}
	}

	defer func() {
		_ = link.Close()
	}()

	dev, err := newDevice(ctx, settings, backend, link, bootID)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup

	tickCtx, stopTicks := context.WithCancel(ctx)
	defer stopTicks()

	wg.Go(func() {
		_ = dev.controller.Run(tickCtx)
	})

	if watchPath != "" {
		wg.Go(func() {
			if err := config.Watch(ctx, watchPath, func(cfg *config.Config) {
				applyLogLevel(ctx, cfg.LogLevel)
			}); err != nil {
				logger.WarnKV(ctx, "Settings watcher stopped", "error", err)
			}
		})
	}

	stopConsole, err := startRemoteConsole(ctx, settings, opts, dev, &wg)
	if err != nil {
		cancel()
		wg.Wait()

		return err
	}

	logger.InfoKV(ctx, "Device started",
		"version", version.Short(),
		"transport", settings.Transport.Kind,
		"outputs", settings.Output.Backend,
		"tick", settings.Tick,
		"tone", settings.Tone.Enabled,
	)

	serveErr := dev.serve(ctx)

	switch {
	case serveErr != nil:
		logger.ErrorKV(ctx, "Foreground loop failed", "error", serveErr)
	case ctx.Err() != nil:
	case settings.ExitHaltsTicks:
		logger.Info(ctx, "Halting ticks after exit")
	default:
		// Ticks and the remote status keep running until the process is stopped.
		<-ctx.Done()
	}

	stopTicks()
	stopConsole()
	cancel()
	wg.Wait()

	logger.InfoKV(ctx, "Device stopped", "snapshot", dev.controller.Snapshot().Fields())

	return serveErr
}

// loadSettings returns the settings and the path to watch, if any.
func loadSettings(opts *Options) (*config.Config, string, error) {
	var (
		settings  *config.Config
		watchPath string
	)

	switch {
	case opts.Config != nil:
		cloned := *opts.Config
		settings = &cloned
	default:
		loaded, err := config.Load(opts.ConfigPath)
		switch {
		case err == nil:
			settings = loaded
			watchPath = opts.ConfigPath
			if watchPath == "" {
				watchPath = config.DefaultConfigFilename
			}
		case opts.ConfigPath == "" && errors.Is(err, os.ErrNotExist):
			settings = config.Default()
		default:
			return nil, "", err
		}
	}

	if opts.Port != "" {
		settings.Transport.Kind = config.TransportSerial
		settings.Transport.Port = opts.Port
	}

	if opts.URL != "" {
		settings.Transport.Kind = config.TransportWebSocket
		settings.Transport.URL = opts.URL
	}

	if opts.Baud > 0 {
		settings.Transport.Baud = opts.Baud
	}

	if err := config.Validate(settings); err != nil {
		return nil, "", err
	}

	return settings, watchPath, nil
}

// applyLogLevel switches the global level when s names a valid level.
func applyLogLevel(ctx context.Context, s string) {
	if s == "" {
		return
	}

	level, ok := logger.ParseLogLevel(s)
	if !ok {
		return
	}

	if level != logger.Level() {
		logger.SetLevel(level)
		logger.InfoKV(ctx, "Log level applied", "level", level.String())
	}
}

// openBackend returns the output backend and its release function.
func openBackend(settings *config.Config, opts *Options) (hal.Backend, func(), error) {
	if opts.Backend != nil {
		return opts.Backend, func() {}, nil
	}

	switch settings.Output.Backend {
	case config.BackendMemory:
		return hal.NewMemory(), func() {}, nil
	case config.BackendModbus:
		m := settings.Output.Modbus

		backend, err := hal.DialModbus(hal.ModbusConfig{
			Endpoint:          m.Endpoint,
			UnitID:            m.UnitID,
			Timeout:           m.Timeout,
			AlarmCoil:         m.AlarmCoil,
			AuxCoil:           m.AuxCoil,
			IndicatorRegister: m.IndicatorRegister,
			CompareRegister:   m.CompareRegister,
			DutyRegister:      m.DutyRegister,
		})
		if err != nil {
			return nil, nil, err
		}

		return backend, func() { _ = backend.Close() }, nil
	default:
		// Standard output may carry the console, so outputs render on stderr.
		return hal.NewConsole(os.Stderr), func() {}, nil
	}
}

// openTransport opens the configured console link.
func openTransport(ctx context.Context, t *config.TransportConfig) (transport.Transport, error) {
	switch t.Kind {
	case config.TransportSerial:
		return transport.OpenSerial(t.Port, t.Baud)
	case config.TransportWebSocket:
		var password string

		if t.Username != "" {
			var err error

			if password, err = transport.Password(); err != nil {
				return nil, err
			}
		}

		return transport.OpenWebSocket(ctx, transport.WebSocketOptions{
			URL:        t.URL,
			Username:   t.Username,
			Password:   password,
			SkipVerify: t.NoSSLVerify,
		})
	default:
		return transport.OpenStdio()
	}
}

// startRemoteConsole serves the gRPC console when configured and returns its stop function.
func startRemoteConsole(
	ctx context.Context,
	settings *config.Config,
	opts *Options,
	dev *Device,
	wg *sync.WaitGroup,
) (func(), error) {
	lis := opts.Listener

	if lis == nil {
		if settings.RemoteAddress == "" && opts.ListenAddress == "" {
			return func() {}, nil
		}

		listenAddress, err := resolveListenAddress(settings.RemoteAddress, opts.ListenAddress)
		if err != nil {
			return nil, fmt.Errorf("resolve listen address: %w", err)
		}

		lc := net.ListenConfig{}

		if lis, err = lc.Listen(ctx, "tcp", listenAddress); err != nil {
			return nil, fmt.Errorf("listen on %s: %w", listenAddress, err)
		}
	}

	grpcServer := grpc.NewServer()
	console.Register(grpcServer, console.NewServer(dev))

	logger.InfoKV(ctx, "Remote console listening", "listen_address", lis.Addr().String())

	wg.Go(func() {
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			logger.ErrorKV(ctx, "Remote console failed", "error", err)
		}
	})

	return func() {
		logger.Info(ctx, "Shutting down remote console")
		grpcServer.GracefulStop()
	}, nil
}

// resolveListenAddress determines the listen address for the gRPC server.
// If override is provided, uses it directly. Otherwise extracts port from configAddr.
// Returns appropriate listen address (e.g., ":8080" for port-only binding).
func resolveListenAddress(configAddr, override string) (string, error) {
	// Use override address if provided (e.g., ":9090", "0.0.0.0:8080").
	if override != "" {
		return override, nil
	}

	// Extract port from config address (e.g., "device.local:50051" -> ":50051").
	if configAddr == "" {
		return "", ErrNoServerAddress
	}

	_, port, err := net.SplitHostPort(configAddr)
	if err != nil {
		return "", fmt.Errorf("invalid remote console address format %q: %w", configAddr, err)
	}

	// Return port-only listen address to bind on all interfaces.
	return ":" + port, nil
}
