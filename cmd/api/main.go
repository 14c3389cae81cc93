package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"leave-approval-service/internal/activities"
	"leave-approval-service/internal/approval"
	"leave-approval-service/internal/config"
	"leave-approval-service/internal/engine"
	"leave-approval-service/internal/escalate"
	"leave-approval-service/internal/httpapi"
	"leave-approval-service/internal/intake"
	"leave-approval-service/internal/notify"
	"leave-approval-service/internal/store"
	"leave-approval-service/internal/workflows"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("config load failed", "error", err)
		os.Exit(1)
	}
	log := newLogger(cfg.LogLevel)

	tc, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
	})
	if err != nil {
		log.Error("unable to create Temporal client", "error", err)
		os.Exit(1)
	}
	defer tc.Close()

	var notifier notify.Notifier = &notify.LogNotifier{Log: log}
	if cfg.SMTP.Host != "" {
		notifier = &notify.SMTPNotifier{
			Host:       cfg.SMTP.Host,
			Port:       cfg.SMTP.Port,
			Username:   cfg.SMTP.Username,
			Password:   cfg.SMTP.Password,
			From:       cfg.SMTP.From,
			Recipients: cfg.SMTP.Recipients,
		}
	}

	taskStore := store.New()
	sched := escalate.NewScheduler(taskStore, notifier, log)
	defer sched.Stop()

	in := intake.New(taskStore, sched, notifier, time.Duration(cfg.Escalation.Window), log)

	eng := engine.NewTemporalEngine(tc, log)
	for _, taskType := range []string{
		engine.TaskTypeManagerApproval,
		engine.TaskTypeHRApproval,
		engine.TaskTypeManualReview,
	} {
		eng.Subscribe(taskType, in.OnJobReceived)
	}

	protocol := approval.New(taskStore, sched, eng, notifier, in, log)

	// The job-delivery activity needs the same task store the HTTP handlers
	// read, so the worker runs in-process with the API.
	w := worker.New(tc, engine.TaskQueue, worker.Options{})
	w.RegisterWorkflow(workflows.LeaveApproval)
	w.RegisterActivity(&activities.Activities{Engine: eng, Notifier: notifier, Log: log})
	if err := w.Start(); err != nil {
		log.Error("worker start failed", "error", err)
		os.Exit(1)
	}
	defer w.Stop()

	r := chi.NewRouter()
	api := httpapi.NewServer(taskStore, protocol, eng, log)
	api.Register(r)
	registerUIRoutes(r, taskStore, protocol)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info("api listening", "addr", cfg.HTTPAddr, "temporal", cfg.Temporal.HostPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down gracefully")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
