package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/sirupsen/logrus"

	"rx-reader/api/internal/config"
	"rx-reader/api/internal/engines"
	"rx-reader/api/internal/handle"
	"rx-reader/api/internal/httpserver"
	"rx-reader/api/internal/logger"
)

const version = "1.0.0"

func main() {
	cfg := config.Load()
	logger.Setup(cfg.LogLevel, cfg.LogFormat)
	flush := logger.InitSentry(cfg.SentryDSN, cfg.Env, version)
	defer flush()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, closeEngines, err := engines.NewPipeline(ctx, cfg)
	if err != nil {
		logrus.WithError(err).Fatal("engines")
	}
	defer closeEngines()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", httpserver.Health("ok"))

	api := humago.New(mux, huma.DefaultConfig("Prescription Reader", version))
	handle.New(p, cfg.MaxUploadBytes).Register(api, cfg.MountPath)

	addr := ":" + cfg.Port
	logrus.WithField("mount", cfg.MountPath+"/").Info("rx-reader starting")
	if err := httpserver.Run(ctx, addr, mux); err != nil {
		logrus.WithError(err).Error("http server")
	}
}
