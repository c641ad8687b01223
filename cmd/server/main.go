package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"DROWSY_DETECTOR/go-backend/internal/alarm"
	"DROWSY_DETECTOR/go-backend/internal/config"
	"DROWSY_DETECTOR/go-backend/internal/handlers"
	"DROWSY_DETECTOR/go-backend/internal/logger"
	"DROWSY_DETECTOR/go-backend/internal/services"
	"DROWSY_DETECTOR/go-backend/internal/stream"
	"DROWSY_DETECTOR/go-backend/internal/vision"
)

func main() {
	httpPort := flag.String("http-port", "", "HTTP port (overrides HTTP_PORT)")
	grpcPort := flag.String("grpc-port", "", "gRPC port (overrides GRPC_PORT)")
	landmarkURL := flag.String("landmark-url", "", "Landmark service URL (overrides LANDMARK_SERVICE_URL)")
	flag.Parse()

	cfg := config.LoadConfig()
	if *httpPort != "" {
		cfg.HTTPPort = trimColon(*httpPort)
	}
	if *grpcPort != "" {
		cfg.GRPCPort = trimColon(*grpcPort)
	}
	if *landmarkURL != "" {
		cfg.LandmarkServiceURL = *landmarkURL
	}

	log := logger.New(cfg.LogLevel, cfg.LogFile, cfg.IsDev())
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("Configuration rejected")
	}

	log.Info("Starting...")
	log.WithFields(logrus.Fields{
		"grpc_port":   cfg.GRPCPort,
		"http_port":   cfg.HTTPPort,
		"landmarks":   cfg.LandmarkServiceURL,
		"camera":      cfg.CameraDevice,
		"environment": cfg.Environment,
	}).Info("Configuration loaded")

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	metrics := services.NewMetrics()
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if err := metrics.Register(registry); err != nil {
		log.WithError(err).Fatal("Could not register metrics")
	}

	// Камера
	camera, err := vision.OpenCamera(cfg.CameraDevice, cfg.JPEGQuality)
	if err != nil {
		log.WithError(err).Fatal("Camera unavailable")
	}

	// Подключение к сервису ключевых точек
	var model services.LandmarkModel
	var landmarks handlers.HealthChecker
	landmarkClient, err := services.NewLandmarkClient(cfg.LandmarkServiceURL, log)
	if err != nil {
		log.WithError(err).Warn("Landmark service unavailable, streaming without detection")
	} else {
		defer landmarkClient.Close()
		model = landmarkClient
		landmarks = landmarkClient
	}

	// Сигнал тревоги
	var backend alarm.Backend
	mp3Backend, err := alarm.NewMP3Backend(cfg.AlarmSound)
	if err != nil {
		log.WithError(err).Warn("Audio unavailable, alarm will only be logged")
		backend = alarm.LogBackend{Log: log}
	} else {
		backend = mp3Backend
	}
	player := alarm.NewPlayer(backend, log)

	frames := stream.NewBroadcaster()
	monitorOpts := []services.MonitorOption{}

	var emitter *services.MQTTEmitter
	if cfg.MQTTEnabled() {
		emitter = services.NewMQTTEmitter(cfg.MQTTBroker, cfg.MQTTTopic, cfg.InstanceID, log)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := emitter.Connect(ctx); err != nil {
			log.WithError(err).Warn("MQTT broker unavailable, retrying in background")
		}
		cancel()
		monitorOpts = append(monitorOpts, services.WithSinks(emitter))
	}

	monitor := services.NewMonitor(camera, model, player, frames, metrics, log, monitorOpts...)

	hub := handlers.NewHub(cfg.MaxConnections, monitor, metrics, log)
	monitor.AddSink(hub)

	httpHandler, err := handlers.NewHTTPHandler(monitor, frames, metrics, hub, landmarks, cfg.TemplateDir, log)
	if err != nil {
		log.WithError(err).Fatal("Could not load viewer page")
	}

	// gRPC сервер
	grpcServer := grpc.NewServer(
		grpc.MaxRecvMsgSize(50*1024*1024),
		grpc.MaxSendMsgSize(50*1024*1024),
		grpc.UnaryInterceptor(handlers.LoggingInterceptor(log)),
	)
	handlers.RegisterControlServer(grpcServer, handlers.NewGRPCHandler(monitor, metrics, log))
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	// HTTP сервер; без WriteTimeout, иначе /video_feed обрывается
	httpServer := &http.Server{
		Addr: ":" + cfg.HTTPPort,
		Handler: handlers.NewRouter(httpHandler, handlers.RouterOptions{
			RateLimitPerMin:     cfg.RateLimitPerMin,
			ControlPasswordHash: cfg.ControlPasswordHash,
			Gatherer:            registry,
		}),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go startGRPCServer(grpcServer, cfg.GRPCPort, log)
	go startHTTPServer(httpServer, log)

	loopCtx, stopLoop := context.WithCancel(context.Background())
	loopDone := make(chan error, 1)
	go func() {
		loopDone <- monitor.Run(loopCtx)
	}()

	// Ждём сигнала или конца видеопотока
	select {
	case <-done:
		log.Info("Shutting down...")
	case err := <-loopDone:
		log.WithError(err).Warn("Frame loop ended, shutting down")
		loopDone <- err
	}

	healthServer.Shutdown()
	stopLoop()
	<-loopDone

	// Освобождаем камеру и выключаем тревогу
	monitor.Shutdown()
	if err := camera.Close(); err != nil {
		log.WithError(err).Warn("Camera release failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stopped := make(chan struct{})
	go func() {
		log.Info("Stopping gRPC server...")
		grpcServer.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
		log.Info("gRPC server stopped")
	case <-shutdownCtx.Done():
		log.Warn("Forced gRPC shutdown")
		grpcServer.Stop()
	}

	httpShutdownCtx, cancelHTTP := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelHTTP()

	log.Info("Stopping HTTP server...")
	if err := httpServer.Shutdown(httpShutdownCtx); err != nil {
		log.WithError(err).Error("Error shutting down HTTP server")
	} else {
		log.Info("HTTP server gracefully stopped")
	}

	log.Info("Closing WebSocket connections...")
	hub.CloseAll()

	if emitter != nil {
		emitter.Disconnect()
	}

	log.Info("Goodbye!")
}

func trimColon(port string) string {
	if len(port) > 0 && port[0] == ':' {
		return port[1:]
	}
	return port
}

func startGRPCServer(srv *grpc.Server, port string, log *logrus.Logger) {
	lis, err := net.Listen("tcp", ":"+port)
	if err != nil {
		log.WithError(err).Fatal("Failed to listen on gRPC port")
	}

	log.WithField("port", port).Info("gRPC server listening")

	if err := srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		log.WithError(err).Fatal("Failed to serve gRPC")
	}
}

func startHTTPServer(srv *http.Server, log *logrus.Logger) {
	log.WithField("addr", srv.Addr).Info("HTTP server listening")
	log.Infof("Viewer:     http://localhost%s/", srv.Addr)
	log.Infof("Stream:     http://localhost%s/video_feed", srv.Addr)
	log.Infof("WebSocket:  ws://localhost%s/ws", srv.Addr)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Fatal("Failed to serve HTTP")
	}
}
