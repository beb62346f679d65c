package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Wuchinator/tracks-relay/internal/config"
	"github.com/Wuchinator/tracks-relay/internal/message"
	"github.com/Wuchinator/tracks-relay/internal/relay"
	"github.com/Wuchinator/tracks-relay/pkg/kafka"
	"github.com/Wuchinator/tracks-relay/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

const serviceName = "tracks-relay"

func main() {

	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Error loading config: %v", err))
	}

	log, err := logger.NewLogger(cfg.LogLevel, cfg.Environment)
	if err != nil {
		panic(fmt.Sprintf("Error initializing logger: %v", err))
	}
	defer log.Sync()

	log = logger.WithService(log, serviceName)
	log.Info("Starting Tracks Relay",
		zap.String("environment", cfg.Environment),
		zap.String("raw_events_topic", cfg.Kafka.RawEventsTopic),
		zap.String("payloads_topic", cfg.Kafka.PayloadsTopic),
		zap.String("consumer_group", cfg.Kafka.GroupID),
	)

	producer, err := kafka.NewProducer(kafka.ProducerConfig{
		Brokers:          cfg.Kafka.Brokers,
		Topic:            cfg.Kafka.PayloadsTopic,
		Retries:          cfg.Kafka.ProducerRetries,
		Timeout:          cfg.Kafka.ProducerTimeout,
		RequiredAcks:     cfg.Kafka.RequiredAcks,
		Compression:      cfg.Kafka.CompressionType,
		IdempotentWrites: cfg.Kafka.IdempotentWrites,
		MaxMessageBytes:  cfg.Kafka.MaxMessageBytes,
	}, logger.WithComponent(log, "kafka.producer"))
	if err != nil {
		log.Fatal("Error initializing kafka producer", zap.Error(err))
	}
	defer producer.Close()

	builder := message.NewBuilder(logger.WithComponent(log, "message"))
	relayService := relay.NewService(
		builder,
		producer,
		relay.NewMetrics(prometheus.DefaultRegisterer),
		cfg.Tracks.DefaultUserAgent,
		logger.WithComponent(log, "relay"),
	)

	consumer, err := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers:           cfg.Kafka.Brokers,
		Topics:            []string{cfg.Kafka.RawEventsTopic},
		GroupID:           cfg.Kafka.GroupID,
		AutoCommit:        true,
		CommitInterval:    cfg.Kafka.CommitInterval,
		SessionTimeout:    cfg.Kafka.SessionTimeout,
		RebalanceStrategy: cfg.Kafka.RebalanceStrategy,
	}, relayService.CreateMessageHandler(), logger.WithComponent(log, "kafka.consumer"))
	if err != nil {
		log.Fatal("Error initializing kafka consumer", zap.Error(err))
	}
	defer consumer.Close()

	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(
		loggingInterceptor(log),
		recoveryInterceptor(log)),
	)

	// Checker for kuber, serving once the consumer has joined its group
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus(serviceName, grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	reflection.Register(grpcServer)

	listener, err := net.Listen("tcp", ":"+cfg.HealthPort)
	if err != nil {
		log.Fatal("Error initializing gRPC listener", zap.Error(err))
	}

	go func() {
		log.Info("Starting gRPC health server", zap.String("port", cfg.HealthPort))
		if err := grpcServer.Serve(listener); err != nil {
			log.Fatal("Error serving gRPC", zap.Error(err))
		}
	}()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 3 * time.Second,
	}

	go func() {
		log.Info("Starting metrics server", zap.String("addr", cfg.MetricsAddr))
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Metrics server failed", zap.Error(err))
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		if err := consumer.Start(ctx); err != nil {
			log.Error("Consumer error", zap.Error(err))
		}
	}()

	go func() {
		select {
		case <-consumer.WaitReady():
			healthServer.SetServingStatus(serviceName, grpc_health_v1.HealthCheckResponse_SERVING)
			log.Info("Kafka consumer is ready and relaying batches")
		case <-ctx.Done():
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down gracefully...")
	healthServer.Shutdown()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	select {
	case <-consumerDone:
		log.Info("Kafka consumer stopped")
	case <-shutdownCtx.Done():
		log.Warn("Kafka consumer did not stop in time")
	}

	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("Metrics server shutdown failed", zap.Error(err))
	}

	stopped := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
		log.Info("gRPC server stopped")
	case <-shutdownCtx.Done():
		log.Warn("shutdown gRPC server timed out")
		grpcServer.Stop()
	}
	log.Info("Tracks Relay stopped")
}

func loggingInterceptor(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()

		resp, err := handler(ctx, req)

		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.Duration("duration", time.Since(start)),
		}

		if err != nil {
			fields = append(fields, zap.Error(err))
			log.Error("gRPC call failed", fields...)
		} else {
			log.Debug("gRPC call", fields...)
		}

		return resp, err
	}
}

func recoveryInterceptor(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp interface{}, err error) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("Panic recovered",
					zap.String("method", info.FullMethod),
					zap.Any("panic", r),
				)
				err = fmt.Errorf("internal server error")
			}
		}()

		return handler(ctx, req)
	}
}
