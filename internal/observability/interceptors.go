package observability

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"voice-command-service/internal/observability/metrics"
)

// healthService is polled by orchestrators; its calls are logged at debug.
const healthService = "grpc.health.v1.Health"

// phaseReporter is implemented by responses that carry a session state.
type phaseReporter interface {
	PhaseName() string
}

// splitMethod turns "/pkg.Service/Method" into its service and method.
func splitMethod(fullMethod string) (service, method string) {
	name := strings.TrimPrefix(fullMethod, "/")
	if i := strings.LastIndex(name, "/"); i >= 0 {
		return name[:i], name[i+1:]
	}
	return "unknown", name
}

func callEvent(service string, err error) *zerolog.Event {
	switch {
	case err != nil:
		return log.Warn()
	case service == healthService:
		return log.Debug()
	default:
		return log.Info()
	}
}

// UnaryServerInterceptor records every unary call and logs the session phase
// returned by state-changing calls.
func UnaryServerInterceptor(m *metrics.Metrics) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		elapsed := time.Since(start)

		code := status.Code(err).String()
		m.RecordRPC(info.FullMethod, code, elapsed.Seconds())

		service, method := splitMethod(info.FullMethod)
		ev := callEvent(service, err).
			Str("service", service).
			Str("rpc", method).
			Str("code", code).
			Dur("duration", elapsed)
		if pr, ok := resp.(phaseReporter); ok && err == nil {
			ev = ev.Str("phase", pr.PhaseName())
		}
		if err != nil {
			ev = ev.Err(err)
		}
		ev.Msg("Session RPC handled")

		return resp, err
	}
}

// countingStream counts messages sent to a watcher.
type countingStream struct {
	grpc.ServerStream
	sent      int
	lastPhase string
}

func (s *countingStream) SendMsg(msg interface{}) error {
	if err := s.ServerStream.SendMsg(msg); err != nil {
		return err
	}
	s.sent++
	if pr, ok := msg.(phaseReporter); ok {
		s.lastPhase = pr.PhaseName()
	}
	return nil
}

// StreamServerInterceptor records every stream and logs how many updates the
// watcher received and the last phase it saw.
func StreamServerInterceptor(m *metrics.Metrics) grpc.StreamServerInterceptor {
	return func(
		srv interface{},
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		start := time.Now()
		cs := &countingStream{ServerStream: ss}
		err := handler(srv, cs)
		elapsed := time.Since(start)

		code := status.Code(err).String()
		m.RecordRPC(info.FullMethod, code, elapsed.Seconds())

		service, method := splitMethod(info.FullMethod)
		ev := callEvent(service, err).
			Str("service", service).
			Str("rpc", method).
			Str("code", code).
			Int("updates", cs.sent).
			Dur("duration", elapsed)
		if cs.lastPhase != "" {
			ev = ev.Str("lastPhase", cs.lastPhase)
		}
		if err != nil {
			ev = ev.Err(err)
		}
		ev.Msg("Session stream closed")

		return err
	}
}
