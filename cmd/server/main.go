package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"attendance-import-backend/internal/bootstrap"
	"attendance-import-backend/internal/config"
	handler "attendance-import-backend/internal/handlers"
	"attendance-import-backend/internal/routes"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, db, err := bootstrap.Open()
	if err != nil {
		logrus.WithError(err).Fatal("startup failed")
	}
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.Database.AutoMigrate {
		if err := config.Migrate(db); err != nil {
			logrus.WithError(err).Fatal("migration failed")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := bootstrap.NewService(ctx, cfg, db)
	if err != nil {
		logrus.WithError(err).Fatal("service wiring failed")
	}

	r := routes.NewRouter(cfg.CORSOrigins, handler.NewImportHandler(svc, cfg.Import.MaxUploadBytes))
	r.MaxMultipartMemory = cfg.Import.MaxUploadBytes

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logrus.WithField("port", cfg.Port).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Fatal("server stopped")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Error("graceful shutdown failed")
	}
	logrus.Info("server stopped")
}
