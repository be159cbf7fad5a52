package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"butler_bridge/internal/gateway"
	"butler_bridge/internal/handlers"
	"butler_bridge/internal/logger"
	"butler_bridge/internal/repository"
	"butler_bridge/internal/server"
	"butler_bridge/internal/service"

	"github.com/spf13/viper"
)

func main() {
	// load config.yml first so the log level is honored
	if err := loadConfig(); err != nil {
		logger.Get(logger.InfoLevel).Fatalw("error reading config", "err", err)
	}
	log := logger.Get(viper.GetString("log.level"))

	host := viper.GetString("gateway.host")
	if host == "" {
		log.Fatalw("gateway.host is required in config")
	}

	// open DB
	db, err := openDB(log)
	if err != nil {
		log.Fatalw("failed to init sqlite", "err", err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			log.Fatalw("failed to close sqlite", "err", cerr)
		}
	}()

	// wire dependencies
	gw := gateway.NewClient(host, secondsOrZero("gateway.timeout_s"))
	repos := repository.NewRepository(db)
	services := service.NewService(gw, repos, service.Config{
		PollInterval:     secondsOrZero("poll.interval_s"),
		FailureThreshold: viper.GetInt("poll.failure_threshold"),
		SettleTTL:        secondsOrZero("command.settle_ttl_s"),
	})
	apiHandler := handlers.NewHandler(services, log)

	// context for background goroutines
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// serve the last persisted snapshot until the first poll lands
	if err := services.Coordinator.WarmStart(ctx); err != nil {
		log.Infow("warm start skipped", "err", err)
	}

	// start the gateway poll loop
	go services.Coordinator.Run(ctx)

	// start HTTP server
	srv := &server.Server{}
	runHTTPServer(srv, viper.GetString("port"), apiHandler, log)

	// graceful shutdown
	waitForShutdown(cancel, srv, log)
}

func loadConfig() error {
	viper.AddConfigPath("configs") // configs/config.yml
	viper.SetConfigName("config")
	return viper.ReadInConfig()
}

// secondsOrZero reads a duration expressed as whole seconds; zero lets the
// service layer apply its default.
func secondsOrZero(key string) time.Duration {
	return time.Duration(viper.GetInt(key)) * time.Second
}

// openDB initializes the SQLite database using configuration.
func openDB(log *logger.Logger) (*sql.DB, error) {
	dbPath := viper.GetString("db.path")
	if dbPath == "" {
		log.Infow("db.path not set in config; using default file", "default", "butler.db")
		dbPath = "butler.db"
	}
	return repository.InitDB(dbPath)
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, port string, handler *handlers.Handler, log *logger.Logger) {
	go func() {
		if port == "" {
			port = "8080"
		}
		if err := srv.Run(port, handler.InitRoutes()); err != nil {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown listens for termination signals and performs graceful shutdown.
func waitForShutdown(cancel context.CancelFunc, srv *server.Server, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server...")

	// stop background goroutines
	cancel()

	// allow in-flight requests to complete
	ctx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalw("server forced to shutdown", "err", err)
	}
}
