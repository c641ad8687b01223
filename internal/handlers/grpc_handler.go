package handlers

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"DROWSY_DETECTOR/go-backend/internal/services"
)

const ControlServiceName = "drowsiness.v1.Control"

// ControlServer is the gRPC twin of the start/stop HTTP endpoints.
type ControlServer interface {
	StartDetection(context.Context, *emptypb.Empty) (*wrapperspb.StringValue, error)
	StopDetection(context.Context, *emptypb.Empty) (*wrapperspb.StringValue, error)
	Status(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

type GRPCHandler struct {
	monitor Controller
	metrics *services.Metrics
	log     *logrus.Logger
}

func NewGRPCHandler(monitor Controller, metrics *services.Metrics, log *logrus.Logger) *GRPCHandler {
	return &GRPCHandler{
		monitor: monitor,
		metrics: metrics,
		log:     log,
	}
}

func (h *GRPCHandler) StartDetection(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.StringValue, error) {
	h.monitor.StartDetection()
	h.log.Info("gRPC: detection started")
	return wrapperspb.String(MsgDetectionStarted), nil
}

func (h *GRPCHandler) StopDetection(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.StringValue, error) {
	if err := h.monitor.StopDetection(); err != nil {
		h.log.WithError(err).Error("gRPC: alarm did not stop cleanly")
		return nil, status.Error(codes.Internal, "alarm stop failed")
	}
	h.log.Info("gRPC: detection stopped")
	return wrapperspb.String(MsgDetectionStopped), nil
}

func (h *GRPCHandler) Status(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	snap := h.monitor.Snapshot()

	fields := map[string]interface{}{
		"status":           snap.Status,
		"alarm_on":         snap.AlarmOn,
		"detection_active": snap.Detection,
		"closed_frames":    snap.Counters.Closed,
		"viewers":          snap.Viewers,
		"total_frames":     h.metrics.GetTotalFrames(),
		"color": map[string]interface{}{
			"r": int(snap.Color.R),
			"g": int(snap.Color.G),
			"b": int(snap.Color.B),
		},
	}
	if snap.ClosedSince != nil {
		fields["closed_since"] = snap.ClosedSince.Format(time.RFC3339)
	}

	out, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode status: %v", err)
	}
	return out, nil
}

func unaryHandler[Resp any](call func(ControlServer, context.Context, *emptypb.Empty) (Resp, error), method string) func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(emptypb.Empty)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ControlServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/" + ControlServiceName + "/" + method,
		}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(ControlServer), ctx, req.(*emptypb.Empty))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var controlServiceDesc = grpc.ServiceDesc{
	ServiceName: ControlServiceName,
	HandlerType: (*ControlServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "StartDetection", Handler: unaryHandler(ControlServer.StartDetection, "StartDetection")},
		{MethodName: "StopDetection", Handler: unaryHandler(ControlServer.StopDetection, "StopDetection")},
		{MethodName: "Status", Handler: unaryHandler(ControlServer.Status, "Status")},
	},
	Metadata: "drowsiness/v1/control.proto",
}

func RegisterControlServer(s grpc.ServiceRegistrar, srv ControlServer) {
	s.RegisterService(&controlServiceDesc, srv)
}

// LoggingInterceptor logs every unary call with its latency and status code.
func LoggingInterceptor(log *logrus.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		log.WithFields(logrus.Fields{
			"method":     info.FullMethod,
			"code":       status.Code(err).String(),
			"latency_ms": time.Since(start).Milliseconds(),
		}).Debug("gRPC call")
		return resp, err
	}
}
