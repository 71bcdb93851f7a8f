package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/propflow/propflow/ai/oracle"
	"github.com/propflow/propflow/ai/retrieval"
	"github.com/propflow/propflow/dialog"
	"github.com/propflow/propflow/internal/profile"
	"github.com/propflow/propflow/internal/version"
	"github.com/propflow/propflow/plugin/chat_apps/channels"
	"github.com/propflow/propflow/plugin/chat_apps/channels/telegram"
	"github.com/propflow/propflow/plugin/chat_apps/channels/whatsapp"
	"github.com/propflow/propflow/plugin/docgen"
	"github.com/propflow/propflow/server"
	"github.com/propflow/propflow/session"
	"github.com/propflow/propflow/store"
	"github.com/propflow/propflow/store/db"
	"github.com/propflow/propflow/worker"
)

// Exit codes.
const (
	exitOK           = 0
	exitConfig       = 1 // unusable configuration
	exitDependency   = 2 // database or cache unreachable at start
	exitMigrationDue = 3 // pending migrations with auto-migrate disabled
)

var rootCmd = &cobra.Command{
	Use:   "propflow",
	Short: "Conversational lead qualification for real-estate agencies over Telegram and WhatsApp.",
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		// Only load .env for direct binary execution (not when running as
		// systemd service, which carries its own environment).
		if !isRunningAsSystemdService() {
			_ = godotenv.Load()
		}
		return nil
	},
	Run: func(_ *cobra.Command, _ []string) {
		os.Exit(run())
	},
}

func run() int {
	instanceProfile := &profile.Profile{
		Mode:    viper.GetString("mode"),
		Addr:    viper.GetString("addr"),
		Port:    viper.GetInt("port"),
		Data:    viper.GetString("data"),
		Driver:  viper.GetString("driver"),
		DSN:     viper.GetString("dsn"),
		Version: version.GetCurrentVersion(viper.GetString("mode")),
	}
	instanceProfile.FromEnv()
	if err := instanceProfile.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		return exitConfig
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbDriver, err := db.NewDBDriver(instanceProfile)
	if err != nil {
		slog.Error("failed to create db driver", "error", err)
		return exitDependency
	}
	storeInstance := store.New(dbDriver, instanceProfile)
	defer storeInstance.Close()

	if viper.GetBool("auto-migrate") {
		if err := storeInstance.Migrate(ctx); err != nil {
			slog.Error("failed to migrate", "error", err)
			return exitDependency
		}
	} else {
		pending, err := storeInstance.PendingMigrations(ctx)
		if err != nil {
			slog.Error("failed to check migrations", "error", err)
			return exitDependency
		}
		if pending > 0 {
			slog.Error("database schema is behind", "pending_migrations", pending)
			return exitMigrationDue
		}
	}

	sessions, err := newSessionCache(ctx, instanceProfile)
	if err != nil {
		slog.Error("failed to connect session cache", "addr", instanceProfile.RedisAddr, "error", err)
		return exitDependency
	}
	defer sessions.Close()

	machine := dialog.NewMachine(storeInstance, sessions, newOracle(instanceProfile), retrieval.New(storeInstance))

	registry := channels.NewRegistry()
	defer registry.Close()
	if instanceProfile.TelegramBotToken != "" {
		tg, err := telegram.New(&telegram.Config{BotToken: instanceProfile.TelegramBotToken})
		if err != nil {
			slog.Error("failed to connect telegram", "error", err)
			return exitDependency
		}
		registry.Register(tg)
	}
	if instanceProfile.GatewayBaseURL != "" {
		registry.Register(whatsapp.New(&whatsapp.Config{
			BaseURL: instanceProfile.GatewayBaseURL,
			APIKey:  instanceProfile.GatewayAPIKey,
		}))
	}

	var reports worker.ReportGenerator
	if instanceProfile.DocServiceURL != "" {
		reports = docgen.New(&docgen.Config{BaseURL: instanceProfile.DocServiceURL})
	}
	workers := worker.NewRunner(
		worker.NewGhost(storeInstance, registry),
		worker.NewMatcher(storeInstance, registry, reports),
		worker.NewDigest(storeInstance, registry),
	)
	go func() {
		if err := workers.Run(ctx); err != nil {
			slog.Error("worker runner stopped", "error", err)
		}
	}()

	s := server.New(instanceProfile, storeInstance, machine, registry)

	c := make(chan os.Signal, 1)
	// The default signal sent by `kill` is SIGTERM, which most process
	// managers use to request a graceful shutdown.
	signal.Notify(c, terminationSignals...)
	go func() {
		<-c
		s.Shutdown(ctx)
		cancel()
	}()

	printGreetings(instanceProfile)
	if err := s.Start(ctx); err != nil {
		slog.Error("failed to start server", "error", err)
		return exitDependency
	}
	<-ctx.Done()
	return exitOK
}

func newSessionCache(ctx context.Context, p *profile.Profile) (session.Cache, error) {
	if p.RedisAddr == "" {
		return session.NewMemoryCache(p.SessionTTL), nil
	}
	return session.NewRedisCache(ctx, p.RedisAddr, p.RedisPassword, p.SessionTTL)
}

func newOracle(p *profile.Profile) oracle.Oracle {
	if !p.IsOracleEnabled() {
		slog.Warn("oracle disabled, conversations degrade to button prompts")
		return oracle.Disabled{}
	}
	client, err := oracle.NewClient(&oracle.Config{
		Provider: p.OracleProvider,
		Model:    p.OracleModel,
		APIKey:   p.OracleAPIKey,
		BaseURL:  p.OracleBaseURL,
		Timeout:  p.OracleTimeout,
		RPS:      p.OracleRPS,
	})
	if err != nil {
		slog.Warn("oracle misconfigured, conversations degrade to button prompts", "error", err)
		return oracle.Disabled{}
	}
	return client
}

func init() {
	viper.SetDefault("mode", "dev")
	viper.SetDefault("driver", "sqlite")
	viper.SetDefault("port", 28090)
	viper.SetDefault("auto-migrate", true)

	rootCmd.PersistentFlags().String("mode", "dev", `mode of server, can be "prod" or "dev" or "demo"`)
	rootCmd.PersistentFlags().String("addr", "", "address of server")
	rootCmd.PersistentFlags().Int("port", 28090, "port of server")
	rootCmd.PersistentFlags().String("data", "", "data directory")
	rootCmd.PersistentFlags().String("driver", "sqlite", "database driver (postgres, sqlite)")
	rootCmd.PersistentFlags().String("dsn", "", "database source name (aka. DSN)")
	rootCmd.PersistentFlags().Bool("auto-migrate", true, "apply pending schema migrations on start")

	for _, key := range []string{"mode", "addr", "port", "data", "driver", "dsn", "auto-migrate"} {
		if err := viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(key)); err != nil {
			panic(err)
		}
	}

	viper.SetEnvPrefix("propflow")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

func printGreetings(profile *profile.Profile) {
	fmt.Printf("PropFlow %s started\n", profile.Version)
	fmt.Printf("Mode: %s\n", profile.Mode)
	fmt.Printf("Database driver: %s\n", profile.Driver)
	if profile.IsDev() && profile.DSN != "" {
		fmt.Fprintf(os.Stderr, "Database: %s\n", profile.DSN)
	}
	if len(profile.Addr) == 0 {
		fmt.Printf("Webhooks on port %d\n", profile.Port)
	} else {
		fmt.Printf("Webhooks on %s:%d\n", profile.Addr, profile.Port)
	}
}

// isRunningAsSystemdService detects if the process is running under systemd.
func isRunningAsSystemdService() bool {
	return os.Getenv("INVOCATION_ID") != "" || os.Getenv("WATCHDOG_USEC") != ""
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitConfig)
	}
}
