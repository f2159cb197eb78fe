package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"gigflow/api"
)

func main() {
	args, err := ParseArgs()
	if err != nil {
		panic(err)
	}
	if !args.Validate() {
		panic("missing arguments")
	}
	logger := args.Logger()
	slog.SetDefault(logger)

	server, err := api.NewServer(args.ServerConfig, api.WithLogger(logger))
	if err != nil {
		logger.Error("Fail to create server", slog.Any("error", err))
		os.Exit(1)
	}
	defer server.Close()
	server.Start()

	router := gin.New()
	router.Use(gin.Recovery())
	server.RegisterHandlers(router)

	httpServer := &http.Server{
		Addr:              args.ServerURL,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	// SSE 是長連線，Shutdown 開始時先結束它們，否則會一直等到逾時
	httpServer.RegisterOnShutdown(server.CloseEventStreams)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		logger.Info("Server listening", slog.String("addr", args.ServerURL))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server stopped unexpectedly", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Fail to shutdown gracefully", slog.Any("error", err))
		httpServer.Close()
	}
}
