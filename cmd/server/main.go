package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/growpixel/leadmail/internal/config"
	"github.com/growpixel/leadmail/internal/httpapi"
	"github.com/growpixel/leadmail/internal/service"
	"github.com/growpixel/leadmail/pkg/logging"
	"github.com/joho/godotenv"
)

func main() {
	// Local development convenience; production supplies real env vars.
	_ = godotenv.Load()

	configuration, configErr := config.LoadConfig()
	if configErr != nil {
		fallbackLogger := logging.NewLogger("INFO")
		fallbackLogger.Error("Configuration error", "error", configErr)
		os.Exit(1)
	}

	mainLogger := logging.NewLogger(configuration.LogLevel)

	emailSender := service.NewSMTPEmailSender(service.SMTPConfig{
		Host:              configuration.SMTPHost,
		Port:              configuration.SMTPPort,
		Username:          configuration.SMTPUsername,
		Password:          configuration.SMTPPassword,
		FromName:          configuration.FromName,
		FromAddress:       configuration.SMTPUsername,
		Secure:            configuration.SMTPSecure,
		ConnectionTimeout: time.Duration(configuration.ConnectionTimeoutSec) * time.Second,
		SendTimeout:       time.Duration(configuration.SendTimeoutSec) * time.Second,
	}, mainLogger)

	leadService := service.NewLeadService(emailSender, mainLogger, configuration.AdminEmail)

	server, serverErr := httpapi.NewServer(httpapi.Config{
		ListenAddr:           configuration.ListenAddr,
		AllowedOrigin:        configuration.AllowedOrigin,
		LeadService:          leadService,
		Logger:               mainLogger,
		MaxUploadBytes:       configuration.MaxUploadBytes,
		ShutdownGraceTimeout: time.Duration(configuration.ShutdownGraceSec) * time.Second,
	})
	if serverErr != nil {
		mainLogger.Error("Failed to construct HTTP server", "error", serverErr)
		os.Exit(1)
	}

	shutdownCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErrors := make(chan error, 1)
	go func() {
		mainLogger.Info("Lead intake server listening", "addr", configuration.ListenAddr)
		serveErrors <- server.Start()
	}()

	select {
	case serveError := <-serveErrors:
		if serveError != nil {
			mainLogger.Error("HTTP server crashed", "error", serveError)
			os.Exit(1)
		}
	case <-shutdownCtx.Done():
		mainLogger.Info("Shutdown signal received")
		if shutdownError := server.Shutdown(context.Background()); shutdownError != nil {
			mainLogger.Error("Graceful shutdown failed", "error", shutdownError)
			os.Exit(1)
		}
	}
}
