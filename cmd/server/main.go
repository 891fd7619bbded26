package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"

	"github.com/tuannm99/novats/internal"
	"github.com/tuannm99/novats/internal/alias/util"
	"github.com/tuannm99/novats/internal/engine"
	"github.com/tuannm99/novats/server/novatswire"
)

func main() {
	flags := pflag.NewFlagSet("novats-server", pflag.ExitOnError)
	cfgPath := flags.StringP("config", "c", "", "path to YAML config")
	flags.String("workdir", "./data", "directory holding table files")
	flags.String("addr", "127.0.0.1:8866", "tcp listen address")
	flags.String("durability", "safe", "safe (fsync every batch) or fast (checkpoint on commit)")
	flags.String("metrics-addr", "", "serve prometheus /metrics on this address")
	flags.Bool("debug", false, "debug logging")
	_ = flags.Parse(os.Args[1:])

	if err := run(*cfgPath, flags); err != nil {
		fmt.Fprintf(os.Stderr, "novats: %v\n", err)
		os.Exit(1)
	}
}

func run(cfgPath string, flags *pflag.FlagSet) error {
	v := internal.NewViper()
	if err := internal.ReadFile(v, cfgPath); err != nil {
		return err
	}
	// flags win over file and env only when set explicitly
	for key, name := range map[string]string{
		"storage.workdir":     "workdir",
		"storage.durability":  "durability",
		"server.addr":         "addr",
		"server.metrics_addr": "metrics-addr",
		"server.debug":        "debug",
	} {
		if f := flags.Lookup(name); f != nil && f.Changed {
			if err := v.BindPFlag(key, f); err != nil {
				return err
			}
		}
	}

	cfg, err := internal.Decode(v)
	if err != nil {
		return err
	}

	level := slog.LevelInfo
	if cfg.Server.Debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	opts, err := cfg.EngineOptions()
	if err != nil {
		return err
	}
	db, err := engine.Open(cfg.Storage.Workdir, opts)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			slog.Error("server:: close database", "err", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Server.MetricsAddr != "" {
		ms := &http.Server{
			Addr:              cfg.Server.MetricsAddr,
			Handler:           promhttp.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			slog.Info("server:: metrics listening", "addr", cfg.Server.MetricsAddr)
			if err := ms.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("server:: metrics", "err", err)
			}
		}()
		defer util.CloseFunc(ms)
	}

	ln, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	slog.Info("server:: novats listening",
		"app", cfg.AppName,
		"addr", ln.Addr().String(),
		"workdir", cfg.Storage.Workdir,
		"durability", opts.Durability.String(),
	)
	return novatswire.NewServer(db).Serve(ctx, ln)
}
