// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/AleutianAI/williwaw/config"
	"github.com/AleutianAI/williwaw/handlers"
	"github.com/AleutianAI/williwaw/llm"
	"github.com/AleutianAI/williwaw/middleware"
	"github.com/AleutianAI/williwaw/observability"
	"github.com/AleutianAI/williwaw/pkg/sse"
	"github.com/AleutianAI/williwaw/routes"
	"github.com/AleutianAI/williwaw/storage"
	"github.com/AleutianAI/williwaw/tasks"

	// --- OpenTelemetry imports ---
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
)

const serviceName = "williwaw"

func initTracer() (func(context.Context), error) {
	ctx := context.Background()

	otelEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otelEndpoint == "" {
		// No collector configured; tracing stays on the no-op provider.
		return func(context.Context) {}, nil
	}
	conn, err := grpc.NewClient(otelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String(serviceName)))
	if err != nil {
		return nil, err
	}
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.
		TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load(os.Getenv("WILLIWAW_CONFIG"))
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	// --- Init the tracer ---
	cleanup, err := initTracer()
	if err != nil {
		log.Fatalf("failed to setup the OTLP tracer: %v", err)
	}
	defer cleanup(context.Background())

	observability.InitMetrics()

	dbCfg := storage.DefaultConfig(cfg.DataDir)
	dbCfg.Logger = logger
	db, err := storage.OpenDB(dbCfg)
	if err != nil {
		log.Fatalf("failed to open conversation database: %v", err)
	}

	store := storage.NewConversationStore(db, cfg.HistoryTTL, logger)
	scheduler := tasks.NewBackgroundScheduler(tasks.DefaultTaskTimeout, logger)

	llmClient, err := llm.NewStreamClient(llm.ClientConfig{
		Backend:       cfg.Backend,
		BaseURL:       cfg.WorkersAI.BaseURL,
		Model:         cfg.WorkersAI.Model,
		APIToken:      cfg.WorkersAI.APIToken,
		OpenAIKey:     cfg.OpenAI.APIKey,
		OpenAIBaseURL: cfg.OpenAI.BaseURL,
		OpenAIModel:   cfg.OpenAI.Model,
	})
	if err != nil {
		log.Fatalf("failed to initialize LLM client: %v", err)
	}
	slog.Info("configured the LLM client", "backend", cfg.Backend)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(logger))

	deps := &handlers.Deps{
		Store:        store,
		LLM:          llmClient,
		Scheduler:    scheduler,
		Metrics:      observability.DefaultMetrics,
		Log:          logger,
		SystemPrompt: cfg.SystemPrompt,
		MaxTokens:    cfg.MaxTokens,
		Backend:      cfg.Backend,
	}
	routes.SetupRoutes(router, deps, cfg.UIDir)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		slog.Info("starting the chat server", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		slog.Info("shutting down the chat server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(),
			30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown failed", "error", err)
		}
		if err := scheduler.Drain(shutdownCtx); err != nil {
			slog.Error("background tasks did not drain", "error", err)
		}
		if err := db.Close(); err != nil {
			slog.Error("database close failed", "error", err)
		}
		sse.PurgeSecureMemory()
		return nil
	})

	if err := group.Wait(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
