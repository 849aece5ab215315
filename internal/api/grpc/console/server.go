package console

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	domain "github.com/oshokin/smart-alarm/internal/domain/alarm"
	"github.com/oshokin/smart-alarm/internal/logger"
)

// ErrUnavailable is wrapped by services that cannot run commands right now,
// for example after the exit command stopped the foreground loop.
var ErrUnavailable = errors.New("console unavailable")

// Service abstracts the device operations the transport layer depends on.
type Service interface {
	// Exec runs line on the device and returns everything the command replied.
	Exec(ctx context.Context, actor *domain.Actor, line string) (string, error)
	// Snapshot returns the current controller state.
	Snapshot(ctx context.Context) domain.Snapshot
	// BootID identifies this run of the device.
	BootID() string
}

// Server implements ConsoleServer on top of a Service.
type Server struct {
	// service provides the device operations.
	service Service
}

// NewServer wires the provided service implementation into a gRPC handler.
func NewServer(service Service) *Server {
	return &Server{
		service: service,
	}
}

// Exec runs one command line on behalf of the operator named in the metadata.
func (s *Server) Exec(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.StringValue, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	line := strings.TrimRight(req.GetValue(), "\r\n")
	if strings.TrimSpace(line) == "" {
		return nil, status.Error(codes.InvalidArgument, "command line is required")
	}

	if strings.ContainsAny(line, "\r\n") {
		return nil, status.Error(codes.InvalidArgument, "one command line per call")
	}

	actor, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}

	ctx = logger.WithFields(ctx, zap.Stringer("actor", actor), zap.String("line", line))

	reply, err := s.service.Exec(ctx, actor, line)
	if err != nil {
		logger.WarnKV(ctx, "Remote command failed", "error", err)

		return nil, toStatus(err)
	}

	return wrapperspb.String(reply), nil
}

// GetStatus returns the controller snapshot with the boot id.
func (s *Server) GetStatus(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	snapshot := s.service.Snapshot(ctx)

	fields := snapshot.Fields()
	fields["boot_id"] = s.service.BootID()

	result, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Error(codes.Internal, "unable to encode status")
	}

	return result, nil
}

// actorFromContext reads the operator from the incoming metadata.
func actorFromContext(ctx context.Context) (*domain.Actor, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return nil, status.Error(codes.InvalidArgument, "actor is required")
	}

	values := md.Get(ActorMetadataKey)
	if len(values) == 0 {
		return nil, status.Error(codes.InvalidArgument, "actor is required")
	}

	actor, err := domain.ParseActor(values[0])
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	return actor, nil
}

// toStatus maps service errors onto gRPC codes.
func toStatus(err error) error {
	switch {
	case errors.Is(err, ErrUnavailable):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	default:
		return status.Error(codes.Internal, "unable to run command")
	}
}
