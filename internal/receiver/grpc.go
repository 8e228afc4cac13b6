package receiver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"syscall"

	"github.com/rs/zerolog"
	collogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/nixlim/po-stats/internal/config"
	"github.com/nixlim/po-stats/internal/engine"
)

// GRPCReceiver serves the OTLP LogsService.
type GRPCReceiver struct {
	collogspb.UnimplementedLogsServiceServer

	cfg      config.ReceiverConfig
	d        Dispatcher
	sl       Logger
	log      zerolog.Logger
	server   *grpc.Server
	listener net.Listener
}

// NewGRPCReceiver returns a receiver dispatching to d. A nil sl discards
// the signal debug log.
func NewGRPCReceiver(cfg config.ReceiverConfig, d Dispatcher, sl Logger, log zerolog.Logger) *GRPCReceiver {
	if sl == nil {
		sl = NopLogger{}
	}
	return &GRPCReceiver{cfg: cfg, d: d, sl: sl, log: log}
}

// Start binds the configured port and serves in the background.
func (r *GRPCReceiver) Start(ctx context.Context) error {
	lis, err := listen(ctx, r.cfg.Bind, r.cfg.GRPCPort)
	if err != nil {
		return err
	}
	r.listener = lis
	r.server = grpc.NewServer()
	collogspb.RegisterLogsServiceServer(r.server, r)

	go func() {
		if err := r.server.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			r.log.Error().Err(err).Msg("grpc receiver stopped")
		}
	}()
	r.log.Info().Str("addr", lis.Addr().String()).Msg("otlp grpc receiver listening")
	return nil
}

// Stop drains in-flight calls and closes the listener.
func (r *GRPCReceiver) Stop() {
	if r.server != nil {
		r.server.GracefulStop()
	}
}

// Addr returns the bound address, or nil before Start.
func (r *GRPCReceiver) Addr() net.Addr {
	if r.listener == nil {
		return nil
	}
	return r.listener.Addr()
}

// Export implements collogspb.LogsServiceServer.
func (r *GRPCReceiver) Export(ctx context.Context, req *collogspb.ExportLogsServiceRequest) (*collogspb.ExportLogsServiceResponse, error) {
	sigs := signalsFromRequest(req)
	if _, err := dispatchAll(ctx, r.d, r.sl, "grpc", sigs); err != nil {
		if errors.Is(err, engine.ErrLoopClosed) {
			return nil, status.Error(codes.Unavailable, "engine is shutting down")
		}
		return nil, status.FromContextError(err).Err()
	}
	if len(sigs) > 0 {
		r.log.Debug().Int("signals", len(sigs)).Msg("otlp grpc export")
	}
	return &collogspb.ExportLogsServiceResponse{}, nil
}

func listen(ctx context.Context, bind string, port int) (net.Listener, error) {
	addr := net.JoinHostPort(bind, strconv.Itoa(port))
	var lc net.ListenConfig
	lis, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		if errors.Is(err, syscall.EADDRINUSE) {
			return nil, fmt.Errorf("port %d already in use", port)
		}
		return nil, fmt.Errorf("listening on %s: %w", addr, err)
	}
	return lis, nil
}
