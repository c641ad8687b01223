package handlers

import (
	"context"
	"errors"
	"net"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"DROWSY_DETECTOR/go-backend/internal/drowsiness"
	"DROWSY_DETECTOR/go-backend/internal/logger"
	"DROWSY_DETECTOR/go-backend/internal/services"
)

func startControlServer(t *testing.T, ctrl Controller) *grpc.ClientConn {
	t.Helper()

	log := logger.Discard()
	lis := bufconn.Listen(1024 * 1024)
	srv := grpc.NewServer(grpc.UnaryInterceptor(LoggingInterceptor(log)))
	RegisterControlServer(srv, NewGRPCHandler(ctrl, services.NewMetrics(), log))
	healthpb.RegisterHealthServer(srv, health.NewServer())
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	conn, err := grpc.Dial("bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestGRPCStartStop(t *testing.T) {
	ctrl := &fakeController{active: true}
	conn := startControlServer(t, ctrl)
	ctx := context.Background()

	resp := new(wrapperspb.StringValue)
	if err := conn.Invoke(ctx, "/"+ControlServiceName+"/StopDetection", &emptypb.Empty{}, resp); err != nil {
		t.Fatalf("StopDetection failed: %v", err)
	}
	if resp.GetValue() != MsgDetectionStopped {
		t.Errorf("unexpected reply %q", resp.GetValue())
	}
	if ctrl.Snapshot().Detection {
		t.Error("detection should be inactive")
	}

	if err := conn.Invoke(ctx, "/"+ControlServiceName+"/StartDetection", &emptypb.Empty{}, resp); err != nil {
		t.Fatalf("StartDetection failed: %v", err)
	}
	if resp.GetValue() != MsgDetectionStarted {
		t.Errorf("unexpected reply %q", resp.GetValue())
	}
}

func TestGRPCStopFailure(t *testing.T) {
	ctrl := &fakeController{stopErr: errors.New("device busy")}
	conn := startControlServer(t, ctrl)

	err := conn.Invoke(context.Background(), "/"+ControlServiceName+"/StopDetection", &emptypb.Empty{}, new(wrapperspb.StringValue))
	if status.Code(err) != codes.Internal {
		t.Errorf("expected Internal, got %v", err)
	}
}

func TestGRPCStatus(t *testing.T) {
	conn := startControlServer(t, &fakeController{active: true})

	resp := new(structpb.Struct)
	if err := conn.Invoke(context.Background(), "/"+ControlServiceName+"/Status", &emptypb.Empty{}, resp); err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	fields := resp.AsMap()
	if fields["status"] != drowsiness.StatusActive {
		t.Errorf("unexpected status %v", fields["status"])
	}
	if fields["detection_active"] != true {
		t.Errorf("expected detection_active, got %v", fields["detection_active"])
	}
	color, ok := fields["color"].(map[string]interface{})
	if !ok || color["g"] != float64(255) {
		t.Errorf("unexpected color %v", fields["color"])
	}
}

func TestGRPCHealth(t *testing.T) {
	conn := startControlServer(t, &fakeController{})

	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(), &healthpb.HealthCheckRequest{})
	if err != nil {
		t.Fatalf("health check failed: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("expected SERVING, got %v", resp.GetStatus())
	}
}
