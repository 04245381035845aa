package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/BTreeMap/DietCoach/internal/api"
	"github.com/BTreeMap/DietCoach/internal/coach"
	"github.com/BTreeMap/DietCoach/internal/genai"
	"github.com/BTreeMap/DietCoach/internal/messaging"
	"github.com/BTreeMap/DietCoach/internal/reminder"
	"github.com/BTreeMap/DietCoach/internal/scheduler"
	"github.com/BTreeMap/DietCoach/internal/store"
	"github.com/BTreeMap/DietCoach/internal/summary"
	"github.com/BTreeMap/DietCoach/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for DietCoach state data
	DefaultStateDir = "/var/lib/dietcoach"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "dietcoach.db"
	// DefaultAPIAddr is the default API listen address
	DefaultAPIAddr = ":8080"
)

func main() {
	// Load environment configuration
	config := loadEnvironmentConfig()

	// Parse command line flags
	flags := parseCommandLineFlags(config)

	// Initialize structured logger
	initializeLogger(*flags.debug)

	// Ensure required directories exist
	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	slog.Info("Bootstrapping DietCoach with configured modules")
	slog.Debug("Final configuration", "state_dir", *flags.stateDir, "dsn_set", *flags.dbDSN != "", "api_addr", *flags.apiAddr)
	if err := run(flags); err != nil {
		slog.Error("DietCoach failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("DietCoach exited successfully")
}

// Config holds environment configuration
type Config struct {
	DatabaseDSN string
	StateDir    string
	OpenAIKey   string
	OpenAIModel string
	JWTSecret   string
	APIAddr     string
	CORSOrigins string
	Debug       bool
}

// Flags holds command line flag values
type Flags struct {
	stateDir    *string
	dbDSN       *string
	openaiKey   *string
	openaiModel *string
	jwtSecret   *string
	apiAddr     *string
	corsOrigins *string
	debug       *bool
}

// initializeLogger sets up structured logging at the requested level
func initializeLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		DatabaseDSN: os.Getenv("DATABASE_URL"),
		StateDir:    os.Getenv("DIETCOACH_STATE_DIR"),
		OpenAIKey:   os.Getenv("OPENAI_API_KEY"),
		OpenAIModel: os.Getenv("OPENAI_MODEL"),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		APIAddr:     os.Getenv("API_ADDR"),
		CORSOrigins: os.Getenv("CORS_ORIGINS"),
		Debug:       util.ParseBoolEnv("DEBUG", false),
	}

	// SQLITE_DB_PATH takes over when no shared database is configured
	if config.DatabaseDSN == "" {
		config.DatabaseDSN = os.Getenv("SQLITE_DB_PATH")
	}

	// Set default state directory if not specified
	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No DIETCOACH_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}

	// If no database DSN is provided, default to SQLite in the state directory
	if config.DatabaseDSN == "" {
		config.DatabaseDSN = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseDSN)
	}

	// PORT is honored for platforms that inject it; API_ADDR wins when both are set
	if config.APIAddr == "" {
		if port := os.Getenv("PORT"); port != "" {
			config.APIAddr = ":" + port
		} else {
			config.APIAddr = DefaultAPIAddr
		}
	}

	slog.Debug("environment variables loaded",
		"DATABASE_DSN_SET", config.DatabaseDSN != "",
		"DIETCOACH_STATE_DIR", config.StateDir,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"JWT_SECRET_SET", config.JWTSecret != "",
		"API_ADDR", config.APIAddr,
		"CORS_ORIGINS", config.CORSOrigins,
		"DEBUG", config.Debug)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:    flag.String("state-dir", config.StateDir, "state directory for DietCoach data (overrides $DIETCOACH_STATE_DIR)"),
		dbDSN:       flag.String("db-dsn", config.DatabaseDSN, "database DSN: Postgres URL or SQLite path (overrides $DATABASE_URL or $SQLITE_DB_PATH)"),
		openaiKey:   flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		openaiModel: flag.String("openai-model", config.OpenAIModel, "OpenAI model name (overrides $OPENAI_MODEL)"),
		jwtSecret:   flag.String("jwt-secret", config.JWTSecret, "HS256 secret for verifying bearer tokens (overrides $JWT_SECRET)"),
		apiAddr:     flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR or $PORT)"),
		corsOrigins: flag.String("cors-origins", config.CORSOrigins, "comma-separated allowed CORS origins (overrides $CORS_ORIGINS)"),
		debug:       flag.Bool("debug", config.Debug, "enable debug logging (overrides $DEBUG)"),
	}

	flag.Parse()

	// Update database DSN if not explicitly set but state directory is provided
	if *flags.dbDSN == config.DatabaseDSN && config.DatabaseDSN == filepath.Join(config.StateDir, DefaultDBFileName) && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
	}

	return flags
}

// ensureDirectoriesExist creates necessary directories for file-based storage
func ensureDirectoriesExist(flags Flags) error {
	if store.DetectDSNType(*flags.dbDSN) == "sqlite" && *flags.dbDSN != ":memory:" {
		stateDir := filepath.Dir(*flags.dbDSN)
		slog.Debug("Creating state directory for file-based database", "state_dir", stateDir)
		if err := os.MkdirAll(stateDir, 0755); err != nil {
			return err
		}
	}
	return nil
}

// buildStoreOptions constructs store configuration options
func buildStoreOptions(flags Flags) []store.Option {
	var storeOpts []store.Option
	if store.DetectDSNType(*flags.dbDSN) == "postgres" {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store")
		storeOpts = append(storeOpts, store.WithPostgresDSN(*flags.dbDSN))
	} else {
		slog.Debug("Detected SQLite DSN, configuring SQLite store", "db_path", *flags.dbDSN)
		storeOpts = append(storeOpts, store.WithSQLiteDSN(*flags.dbDSN))
	}
	return storeOpts
}

// buildGenAIOptions constructs GenAI configuration options
func buildGenAIOptions(flags Flags) []genai.Option {
	var genaiOpts []genai.Option
	if *flags.openaiKey != "" {
		genaiOpts = append(genaiOpts, genai.WithAPIKey(*flags.openaiKey))
	}
	if *flags.openaiModel != "" {
		genaiOpts = append(genaiOpts, genai.WithModel(*flags.openaiModel))
	}
	if *flags.debug {
		genaiOpts = append(genaiOpts, genai.WithDebugLogging(*flags.stateDir))
	}
	return genaiOpts
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags) []api.Option {
	apiOpts := []api.Option{
		api.WithAddr(*flags.apiAddr),
		api.WithJWTSecret(*flags.jwtSecret),
	}
	if origins := parseCORSOrigins(*flags.corsOrigins); len(origins) > 0 {
		apiOpts = append(apiOpts, api.WithCORSOrigins(origins))
	}
	return apiOpts
}

// parseCORSOrigins splits a comma-separated origin list, dropping blanks.
func parseCORSOrigins(raw string) []string {
	if raw == "" {
		return nil
	}
	var origins []string
	for _, origin := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

// buildSMSSender creates the Twilio sender when credentials are present and
// falls back to the logging sender otherwise, so reminders degrade instead
// of blocking startup.
func buildSMSSender() messaging.Sender {
	sender, err := messaging.NewTwilioSender()
	if err != nil {
		slog.Warn("Twilio not configured, medication reminders will be logged only", "error", err)
		return messaging.NewNoopSender()
	}
	slog.Info("Twilio SMS sender configured")
	return sender
}

// run wires every module together and serves until interrupted.
func run(flags Flags) error {
	st, err := store.NewStore(buildStoreOptions(flags)...)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("Failed to close store", "error", closeErr)
		}
	}()

	ai, err := genai.NewClient(buildGenAIOptions(flags)...)
	if err != nil {
		return err
	}

	coachService := coach.NewService(ai, st)
	medicationModule := coach.NewMedicationModule(ai, st)
	summaryService := summary.NewService(st)

	sched := scheduler.NewCronScheduler()
	reminders := reminder.NewService(st, buildSMSSender(), sched)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := reminders.Recover(ctx); err != nil {
		// The API stays useful without reminders; keep serving.
		slog.Error("Failed to restore reminder schedules", "error", err)
	}
	sched.Start()
	defer sched.Stop()

	srv, err := api.NewServer(coachService, medicationModule, summaryService, buildAPIOptions(flags)...)
	if err != nil {
		return err
	}
	return srv.Start(ctx)
}
