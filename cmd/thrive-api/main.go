package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/thrivelab/thrive/backend/internal/activity"
	"github.com/thrivelab/thrive/backend/internal/auth"
	"github.com/thrivelab/thrive/backend/internal/categories"
	"github.com/thrivelab/thrive/backend/internal/config"
	"github.com/thrivelab/thrive/backend/internal/database"
	"github.com/thrivelab/thrive/backend/internal/logging"
	"github.com/thrivelab/thrive/backend/internal/openai"
	"github.com/thrivelab/thrive/backend/internal/routine"
	"github.com/thrivelab/thrive/backend/internal/server"
	"github.com/thrivelab/thrive/backend/internal/users"
	"go.uber.org/zap"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "thrive-api",
		Short: "Thrive personal-growth tracker backend service",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().Int("token-ttl-minutes", defaults.GetInt("token.ttl_minutes"), "Session token TTL in minutes")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("signing-secret", "", "Session signing secret (overrides env)")
	cmd.PersistentFlags().String("openai-api-key", "", "OpenAI API key (overrides env)")
	cmd.PersistentFlags().String("openai-base-url", defaults.GetString("openai.base_url"), "OpenAI API base URL")
	cmd.PersistentFlags().String("openai-model", defaults.GetString("openai.model"), "OpenAI model used for routine generation")
	cmd.PersistentFlags().Int("generation-timeout-seconds", defaults.GetInt("generation.timeout_seconds"), "Routine generation timeout in seconds")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "token.ttl_minutes", "token-ttl-minutes")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "auth.signing_secret", "signing-secret")
	bindFlag(cmd, "openai.api_key", "openai-api-key")
	bindFlag(cmd, "openai.base_url", "openai-base-url")
	bindFlag(cmd, "openai.model", "openai-model")
	bindFlag(cmd, "generation.timeout_seconds", "generation-timeout-seconds")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger("thrive-api", appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	tokenManager := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte(appConfig.SigningSecret),
		Issuer:        "thrive-auth",
		Audience:      "thrive-api",
		TokenTTL:      appConfig.TokenTTL,
	})

	generator, err := openai.NewClient(openai.ClientConfig{
		APIKey:  appConfig.OpenAIAPIKey,
		BaseURL: appConfig.OpenAIBaseURL,
		Model:   appConfig.OpenAIModel,
		Timeout: appConfig.GenerationTimeout,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	usersService, err := users.NewService(users.ServiceConfig{
		Database:   db,
		IDProvider: activity.NewUUIDProvider(),
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	activityService, err := activity.NewService(activity.ServiceConfig{
		Database:   db,
		Clock:      time.Now,
		IDProvider: activity.NewUUIDProvider(),
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	routineService, err := routine.NewService(routine.ServiceConfig{
		Database:   db,
		Generator:  generator,
		IDProvider: activity.NewUUIDProvider(),
		Logger:     logger,
		Timeout:    appConfig.GenerationTimeout,
	})
	if err != nil {
		return err
	}

	categoryService, err := categories.NewService(db)
	if err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		TokenManager:    tokenManager,
		UsersService:    usersService,
		ActivityService: activityService,
		RoutineService:  routineService,
		CategoryService: categoryService,
		Logger:          logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
