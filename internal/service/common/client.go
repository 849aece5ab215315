//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/oshokin/smart-alarm/internal/api/grpc/console"
	"github.com/oshokin/smart-alarm/internal/config"
	domain "github.com/oshokin/smart-alarm/internal/domain/alarm"
	"github.com/oshokin/smart-alarm/internal/version"
)

// Client talks to the remote console of one device.
type Client struct {
	// conn is the underlying gRPC connection to the device.
	conn *grpc.ClientConn
	// callTimeout bounds every call; zero leaves only the caller's deadline.
	callTimeout time.Duration
	// execTimeout bounds Exec, whose command may run for several seconds.
	execTimeout time.Duration
	// dialOptions are appended to the defaults when connecting.
	dialOptions []grpc.DialOption
}

// Option configures a Client.
type Option func(*Client)

// WithCallTimeout bounds every call. Non-positive values keep the default.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

// WithExecTimeout bounds Exec separately from the other calls.
// Non-positive values keep the default.
func WithExecTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.execTimeout = timeout
		}
	}
}

// WithDialOptions adds gRPC dial options, for example a custom dialer.
func WithDialOptions(opts ...grpc.DialOption) Option {
	return func(c *Client) {
		c.dialOptions = append(c.dialOptions, opts...)
	}
}

var (
	// errAddressRequired is returned by Dial without an address.
	errAddressRequired = errors.New("address must be provided")
	// errActorRequired is returned by Exec without an actor.
	errActorRequired = errors.New("actor must be provided")
	// errNotConnected is returned by calls on a client that never dialed.
	errNotConnected = errors.New("client is not connected")
)

// Dial prepares a connection to the remote console at address.
// The connection is established lazily by the first call, so an unreachable
// device surfaces as codes.Unavailable from Exec or GetStatus.
// Transport security is not negotiated: the console is meant for a trusted
// control network.
func Dial(_ context.Context, address string, opts ...Option) (*Client, error) {
	if address == "" {
		return nil, errAddressRequired
	}

	client := &Client{
		callTimeout: config.DefaultTimeout,
		execTimeout: config.DefaultExecTimeout,
	}

	for _, opt := range opts {
		opt(client)
	}

	dialOptions := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUserAgent(version.UserAgent()),
	}, client.dialOptions...)

	conn, err := grpc.NewClient(address, dialOptions...)
	if err != nil {
		return nil, fmt.Errorf("dial remote console %s: %w", address, err)
	}

	client.conn = conn

	return client, nil
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}

	return c.conn.Close()
}

// Exec runs one command line on the device and returns its reply.
func (c *Client) Exec(ctx context.Context, actor *domain.Actor, line string) (string, error) {
	if actor == nil {
		return "", errActorRequired
	}

	if c == nil || c.conn == nil {
		return "", errNotConnected
	}

	callCtx, cancel := withTimeout(ctx, c.execTimeout)
	defer cancel()

	callCtx = metadata.AppendToOutgoingContext(callCtx, console.ActorMetadataKey, actor.String())

	reply := new(wrapperspb.StringValue)
	if err := c.conn.Invoke(callCtx, console.ExecMethod, wrapperspb.String(line), reply); err != nil {
		return "", fmt.Errorf("exec %q: %w", line, err)
	}

	return reply.GetValue(), nil
}

// GetStatus retrieves the controller snapshot.
func (c *Client) GetStatus(ctx context.Context) (*structpb.Struct, error) {
	if c == nil || c.conn == nil {
		return nil, errNotConnected
	}

	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	resp := new(structpb.Struct)
	if err := c.conn.Invoke(callCtx, console.GetStatusMethod, new(emptypb.Empty), resp); err != nil {
		return nil, fmt.Errorf("get status: %w", err)
	}

	return resp, nil
}

// callContext derives the context of one call.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return withTimeout(ctx, c.callTimeout)
}

// withTimeout bounds ctx by timeout; zero leaves only the caller's deadline.
func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, timeout)
}
