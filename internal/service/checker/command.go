package checker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/smart-alarm/internal/config"
	domain "github.com/oshokin/smart-alarm/internal/domain/alarm"
	"github.com/oshokin/smart-alarm/internal/logger"
	"github.com/oshokin/smart-alarm/internal/service/common"
)

// Options controls the status polling behavior and configuration.
type Options struct {
	// ConfigPath specifies the path to the settings YAML file.
	ConfigPath string
	// ServerAddress provides an optional remote console address override.
	ServerAddress string
	// PollInterval defines the interval between status checks.
	PollInterval time.Duration
	// Until stops watching once the device reports this mode; empty watches until canceled.
	Until string
	// Output receives one line per observed change; defaults to standard output.
	Output io.Writer
}

// DefaultPollInterval defines the default interval for status checks.
const DefaultPollInterval = time.Second

var (
	// errNoServerAddress is returned when neither flags nor settings name the device.
	errNoServerAddress = errors.New("no remote console address configured")
	// errTargetReached indicates that the device reported the awaited mode.
	errTargetReached = errors.New("target mode reached")
)

// Run polls the device status and prints every change until ctx is canceled
// or the device reaches opts.Until.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "alarm-ctl-watch")

	var until *domain.Mode

	if opts.Until != "" {
		mode, err := domain.ParseMode(opts.Until)
		if err != nil {
			return fmt.Errorf("parse target mode: %w", err)
		}

		until = &mode
	}

	// Load settings from configuration file; the default file is optional.
	cfg, err := config.LoadOrDefault(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}

	// Determine server address: command line argument overrides config.
	serverAddress := cfg.RemoteAddress
	if opts.ServerAddress != "" {
		serverAddress = opts.ServerAddress
	}

	if serverAddress == "" {
		return errNoServerAddress
	}

	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	// Establish gRPC connection with timeout from configuration.
	client, err := common.Dial(ctx, serverAddress, common.WithCallTimeout(cfg.Timeout))
	if err != nil {
		return fmt.Errorf("dial device: %w", err)
	}

	// Ensure connection cleanup on function exit.
	defer func() {
		_ = client.Close()
	}()

	logger.InfoKV(ctx, "Watching device status", "server_address", serverAddress, "interval", opts.PollInterval.String())

	w := &watch{out: out, until: until}

	// First check right away, then on every tick.
	if done, err := w.check(ctx, client); done {
		return err
	}

	ticker := time.NewTicker(opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "Context canceled, exiting")

			return nil
		case <-ticker.C:
			if done, err := w.check(ctx, client); done {
				return err
			}
		}
	}
}

// watch remembers the last printed status line.
type watch struct {
	// out receives status lines.
	out io.Writer
	// until is the awaited mode, if any.
	until *domain.Mode
	// last is the last printed line without uptime.
	last string
}

// check fetches the status once. It reports done when watching should stop.
func (w *watch) check(ctx context.Context, client *common.Client) (bool, error) {
	resp, err := client.GetStatus(ctx)
	if err != nil {
		// Transient failures are logged and polled again.
		logger.ErrorKV(ctx, "Get status failed", "error", err)

		return false, nil
	}

	err = w.observe(resp)
	if errors.Is(err, errTargetReached) {
		logger.Info(ctx, "Target mode reached, exiting")

		return true, nil
	}

	return err != nil, err
}

// observe prints resp when it differs from the last status and checks the target mode.
func (w *watch) observe(resp *structpb.Struct) error {
	fields := resp.GetFields()

	mode := fields["mode"].GetStringValue()
	line := fmt.Sprintf("mode=%s phase=%s indicator=%s alarm=%s aux=%s",
		mode,
		fields["phase"].GetStringValue(),
		fields["indicator"].GetStringValue(),
		onOff(fields["alarm_on"].GetBoolValue()),
		onOff(fields["aux_on"].GetBoolValue()),
	)

	if line != w.last {
		w.last = line

		uptime := time.Duration(fields["uptime_ms"].GetNumberValue()) * time.Millisecond
		if _, err := fmt.Fprintf(w.out, "%s uptime=%s\n", line, uptime); err != nil {
			return fmt.Errorf("print status: %w", err)
		}
	}

	if w.until != nil && mode == w.until.String() {
		return errTargetReached
	}

	return nil
}

func onOff(on bool) string {
	if on {
		return "on"
	}

	return "off"
}
