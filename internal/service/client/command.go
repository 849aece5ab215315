package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"

	"github.com/oshokin/smart-alarm/internal/config"
	domain "github.com/oshokin/smart-alarm/internal/domain/alarm"
	"github.com/oshokin/smart-alarm/internal/logger"
	"github.com/oshokin/smart-alarm/internal/service/common"
)

// Options configures one alarm-ctl invocation.
type Options struct {
	// ConfigPath to YAML settings file, defaults to standard filename if empty.
	ConfigPath string

	// ServerAddress overrides the remote console address from config when specified.
	ServerAddress string

	// Line is the command line to run; empty prints the device status instead.
	Line string

	// Wait retries while the device is unreachable instead of failing at once.
	Wait bool

	// Output receives the reply; defaults to standard output.
	Output io.Writer
}

// defaultRetryInterval defines the delay between attempts while waiting for the device.
const defaultRetryInterval = 1 * time.Second

// errNoServerAddress is returned when neither flags nor settings name the device.
var errNoServerAddress = errors.New("no remote console address configured")

// Run sends one command line, or the status request, to the device and prints the reply.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "alarm-ctl")

	cfg, err := config.LoadOrDefault(opts.ConfigPath)
	if err != nil {
		return err
	}

	// Use server address from options if provided, otherwise use config.
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

	// Identify current user and hostname for the device log.
	actor, err := common.DetectActor()
	if err != nil {
		return err
	}

	client, err := common.Dial(ctx, serverAddress,
		common.WithCallTimeout(cfg.Timeout),
		common.WithExecTimeout(cfg.ExecTimeout),
	)
	if err != nil {
		return err
	}

	// Close connection on function exit.
	defer func() {
		_ = client.Close()
	}()

	logger.DebugKV(ctx, "Sending request", "server_address", serverAddress, "line", opts.Line)

	attempt := func() error {
		if opts.Line == "" {
			return printStatus(ctx, client, out)
		}

		return execLine(ctx, client, actor, opts.Line, out)
	}

	return retry(ctx, opts.Wait, attempt)
}

// retry runs attempt until it succeeds or fails with something other than an unreachable device.
func retry(ctx context.Context, wait bool, attempt func() error) error {
	err := attempt()
	if err == nil || !wait || !unreachable(err) {
		return err
	}

	// Setup retry timer for subsequent attempts.
	ticker := time.NewTicker(defaultRetryInterval)
	defer ticker.Stop()

	for {
		logger.WarnKV(ctx, "Device unreachable, retrying", "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			err = attempt()
			if err == nil || !unreachable(err) {
				return err
			}
		}
	}
}

// unreachable reports errors worth retrying. status.Code looks through wrapping.
func unreachable(err error) bool {
	return status.Code(err) == codes.Unavailable
}

func execLine(ctx context.Context, client *common.Client, actor *domain.Actor, line string, out io.Writer) error {
	reply, err := client.Exec(ctx, actor, line)
	if err != nil {
		return err
	}

	_, err = io.WriteString(out, formatReply(reply))

	return err
}

func printStatus(ctx context.Context, client *common.Client, out io.Writer) error {
	resp, err := client.GetStatus(ctx)
	if err != nil {
		return err
	}

	data, err := protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(resp)
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}

	_, err = fmt.Fprintln(out, string(data))

	return err
}

// formatReply converts the device line endings for a local terminal.
func formatReply(reply string) string {
	return strings.ReplaceAll(reply, "\r\n", "\n")
}
