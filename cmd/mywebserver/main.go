// Command mywebserver starts the HTTP server: it parses flags into a
// config.Config, opens the log sink and the user store, builds a
// Reactor, and runs its event loop until interrupted.
//
// Grounded on original_source/code/main.cpp's argv-free, hardcoded-
// defaults startup (server = new WebServer(port, trigMode, ...)) adapted
// to Go's flag package, in the teacher's single-purpose-file style.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Rainllll/MyWebServer/internal/config"
	"github.com/Rainllll/MyWebServer/internal/logsink"
	"github.com/Rainllll/MyWebServer/internal/reactor"
	"github.com/Rainllll/MyWebServer/internal/userstore"
)

func main() {
	cfg := config.Default()

	flag.IntVar(&cfg.Port, "port", cfg.Port, "listening port")
	trigger := flag.Int("trigger", int(cfg.Trigger), "trigger mode: 0=LT/LT 1=ET-conn 2=ET-listen 3=ET-both")
	flag.IntVar(&cfg.IdleTimeoutMS, "timeout", cfg.IdleTimeoutMS, "idle timeout in milliseconds (0 disables)")
	flag.StringVar(&cfg.DBHost, "db-host", "127.0.0.1", "database host")
	flag.IntVar(&cfg.DBPort, "db-port", cfg.DBPort, "database port")
	flag.StringVar(&cfg.DBUser, "db-user", "root", "database user")
	flag.StringVar(&cfg.DBPassword, "db-password", "", "database password")
	flag.StringVar(&cfg.DBName, "db-name", "webserver", "database name")
	flag.IntVar(&cfg.DBPoolSize, "db-pool-size", cfg.DBPoolSize, "database connection pool size")
	flag.IntVar(&cfg.WorkerCount, "workers", cfg.WorkerCount, "worker pool size")
	flag.BoolVar(&cfg.LogEnable, "log", cfg.LogEnable, "enable logging")
	flag.IntVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: 0=debug 1=info 2=warn 3=error")
	flag.IntVar(&cfg.LogQueueCap, "log-queue", cfg.LogQueueCap, "async log queue capacity (0 = synchronous)")
	flag.StringVar(&cfg.DocRoot, "doc-root", cfg.DocRoot, "document root for static files")
	flag.Parse()

	cfg.Trigger = config.TriggerMode(*trigger)

	if err := run(cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	level := logsink.Level(cfg.LogLevel)
	if !cfg.LogEnable {
		level = logsink.Error + 1 // above Error: nothing is written
	}
	log, err := logsink.New(level, cfg.LogDir, cfg.LogSuffix, cfg.LogQueueCap)
	if err != nil {
		return fmt.Errorf("log init: %w", err)
	}
	defer log.Close()

	store, err := userstore.Open(userstore.Config{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		Name:     cfg.DBName,
		PoolSize: cfg.DBPoolSize,
	})
	if err != nil {
		return fmt.Errorf("db open: %w", err)
	}
	defer store.Close()

	verify := func(username, password string, isLogin bool) bool {
		ok, err := store.Verify(context.Background(), username, password, isLogin)
		if err != nil {
			log.Write(logsink.Error, "user_verify: %v", err)
			return false
		}
		return ok
	}

	r, err := reactor.New(cfg, verify, log)
	if err != nil {
		return fmt.Errorf("reactor init: %w", err)
	}
	if err := r.Listen(); err != nil {
		return fmt.Errorf("socket init: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		r.Stop()
	}()

	r.Run()
	return nil
}
