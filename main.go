package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/joho/godotenv/autoload"
	"go.uber.org/zap"

	"github.com/Zachkp/portfolio/internal/admin"
	"github.com/Zachkp/portfolio/internal/config"
	"github.com/Zachkp/portfolio/internal/contact"
	"github.com/Zachkp/portfolio/internal/logger"
	"github.com/Zachkp/portfolio/internal/metrics"
)

func main() {
	configFile := os.Getenv("CONFIG_FILE")
	if configFile == "" {
		configFile = "config.yaml"
	}
	cfg, err := config.Load(configFile)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	gin.SetMode(cfg.Server.Mode)
	l := logger.New(cfg.Server.Mode)
	defer l.Sync()

	if err := cfg.Validate(); err != nil {
		l.Warn("Contact form will fail until the mail relay is configured", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := admin.Open(ctx, cfg.DB.Path, l)
	if err != nil {
		l.Fatal("Failed to open database", zap.String("path", cfg.DB.Path), zap.Error(err))
	}
	defer store.Close()

	adm := admin.New(store, cfg.Admin, l)
	adm.Cleanup(ctx)

	mailer := &contact.SMTPMailer{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Secure:   cfg.SMTP.Secure,
		Username: cfg.SMTP.User,
		Password: cfg.SMTP.Pass,
		Timeout:  cfg.SMTP.Timeout,
	}
	contactHandler := contact.NewHandler(mailer, contact.HandlerConfig{
		Sender: contact.Sender{
			Name:      cfg.SMTP.FromName,
			Address:   cfg.SMTP.User,
			Recipient: cfg.SMTP.Recipient(),
		},
		EscapeHTML: cfg.Contact.EscapeHTML,
	}, contact.Recorders{store, metrics.ContactRecorder{}}, l)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           newRouter(l, contactHandler, adm),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		l.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	l.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		l.Error("Graceful shutdown failed", zap.Error(err))
	}
	adm.Wait()
}
