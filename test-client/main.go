package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"DROWSY_DETECTOR/go-backend/internal/handlers"
)

var (
	backendURL = flag.String("http", "http://localhost:5001", "backend HTTP address")
	grpcAddr   = flag.String("grpc", "localhost:50051", "backend gRPC address")
	user       = flag.String("user", "", "basic auth user for start/stop")
	password   = flag.String("password", "", "basic auth password for start/stop")
)

func get(path string) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodGet, *backendURL+path, nil)
	if err != nil {
		return nil, err
	}
	if *password != "" {
		req.SetBasicAuth(*user, *password)
	}
	return http.DefaultClient.Do(req)
}

// Проверка состояния
func testHealth() error {
	fmt.Println("\n[TEST] Testing /api/health...")
	resp, err := get("/api/health")
	if err != nil {
		return fmt.Errorf("health check failed: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	fmt.Printf("✓ Health check: %s\n", strings.TrimSpace(string(body)))
	return nil
}

// Проверка метрик
func testMetrics() error {
	fmt.Println("\n[TEST] Testing /api/metrics...")
	resp, err := get("/api/metrics")
	if err != nil {
		return fmt.Errorf("metrics failed: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("metrics failed: status %d, body: %s", resp.StatusCode, string(body))
	}
	fmt.Printf("✓ Metrics: %s\n", strings.TrimSpace(string(body)))
	return nil
}

// Проверка видеопотока: читаем первый кадр
func testVideoFeed() error {
	fmt.Println("\n[TEST] Testing /video_feed...")
	resp, err := get("/video_feed")
	if err != nil {
		return fmt.Errorf("video feed failed: %v", err)
	}
	defer resp.Body.Close()

	mediaType, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || mediaType != "multipart/x-mixed-replace" {
		return fmt.Errorf("unexpected content type %q", resp.Header.Get("Content-Type"))
	}

	done := make(chan error, 1)
	go func() {
		part, err := multipart.NewReader(resp.Body, params["boundary"]).NextPart()
		if err != nil {
			done <- err
			return
		}
		frame, err := io.ReadAll(io.LimitReader(part, 10<<20))
		if err != nil && err != io.ErrUnexpectedEOF {
			done <- err
			return
		}
		fmt.Printf("✓ First frame: %s, %d bytes\n", part.Header.Get("Content-Type"), len(frame))
		done <- nil
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(10 * time.Second):
		return fmt.Errorf("no frame within 10s")
	}
}

// Проверка управления детекцией
func testControl(path, want string) error {
	fmt.Printf("\n[TEST] Testing %s...\n", path)
	resp, err := get(path)
	if err != nil {
		return fmt.Errorf("%s failed: %v", path, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || string(body) != want {
		return fmt.Errorf("%s failed: status %d, body: %s", path, resp.StatusCode, string(body))
	}
	fmt.Printf("✓ %s\n", body)
	return nil
}

// Проверка WebSocket
func testWebSocket() error {
	fmt.Println("\n[TEST] Testing /ws...")
	url := "ws" + strings.TrimPrefix(*backendURL, "http") + "/ws?clientId=test-client"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return fmt.Errorf("websocket dial failed: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for i := 0; i < 2; i++ {
		var msg handlers.WebSocketMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return fmt.Errorf("websocket read failed: %v", err)
		}
		fmt.Printf("✓ Received %s\n", msg.Type)
	}

	if err := conn.WriteJSON(handlers.WebSocketMessage{Type: handlers.MsgPing, Timestamp: time.Now().Unix()}); err != nil {
		return fmt.Errorf("websocket write failed: %v", err)
	}
	var pong handlers.WebSocketMessage
	if err := conn.ReadJSON(&pong); err != nil || pong.Type != handlers.MsgPong {
		return fmt.Errorf("expected PONG, got %+v (%v)", pong, err)
	}
	fmt.Println("✓ PING/PONG ok")
	return nil
}

// Проверка gRPC
func testGRPC() error {
	fmt.Println("\n[TEST] Testing gRPC control service...")
	conn, err := grpc.Dial(*grpcAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("did not connect: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	health, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{})
	if err != nil {
		return fmt.Errorf("health check failed: %v", err)
	}
	fmt.Printf("✓ gRPC health: %s\n", health.GetStatus())

	status := new(structpb.Struct)
	if err := conn.Invoke(ctx, "/"+handlers.ControlServiceName+"/Status", &emptypb.Empty{}, status); err != nil {
		return fmt.Errorf("status failed: %v", err)
	}
	fmt.Printf("✓ Status: %v\n", status.AsMap())

	reply := new(wrapperspb.StringValue)
	if err := conn.Invoke(ctx, "/"+handlers.ControlServiceName+"/StartDetection", &emptypb.Empty{}, reply); err != nil {
		return fmt.Errorf("start failed: %v", err)
	}
	fmt.Printf("✓ %s\n", reply.GetValue())
	return nil
}

func main() {
	flag.Parse()

	fmt.Println("=" + strings.Repeat("=", 60))
	fmt.Println("DROWSINESS MONITOR - Backend Smoke Client")
	fmt.Println("=" + strings.Repeat("=", 60))

	fmt.Println("\n[INFO] Make sure the Go backend is running on", *backendURL)
	fmt.Println("[INFO] Make sure a camera is attached and the landmark service is reachable")

	tests := []struct {
		name string
		fn   func() error
	}{
		{"Health Check", testHealth},
		{"Metrics", testMetrics},
		{"Video Feed", testVideoFeed},
		{"Stop Detection", func() error { return testControl("/stop_detection", handlers.MsgDetectionStopped) }},
		{"Start Detection", func() error { return testControl("/start_detection", handlers.MsgDetectionStarted) }},
		{"WebSocket", testWebSocket},
		{"gRPC", testGRPC},
	}

	for _, test := range tests {
		if err := test.fn(); err != nil {
			log.Printf("❌ %s failed: %v", test.name, err)
			os.Exit(1)
		}
	}

	fmt.Println("\n" + strings.Repeat("=", 60))
	fmt.Println("✅ All tests completed successfully!")
	fmt.Println("=" + strings.Repeat("=", 60))
}
