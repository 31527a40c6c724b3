package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/jonathan/resume-screener/internal/archive"
	"github.com/jonathan/resume-screener/internal/config"
	"github.com/jonathan/resume-screener/internal/db"
	"github.com/jonathan/resume-screener/internal/events"
	"github.com/jonathan/resume-screener/internal/llm"
	"github.com/jonathan/resume-screener/internal/prompts"
	"github.com/jonathan/resume-screener/internal/server"
	"github.com/jonathan/resume-screener/internal/skills"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long:  `Start an HTTP server that exposes the registration, resume, job and matching endpoints.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().Int("port", 8000, "Port to listen on")
	serveCmd.Flags().Bool("migrate", true, "Apply the database schema before serving")
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	database, err := db.Connect(connectCtx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer database.Close()

	if migrate, _ := cmd.Flags().GetBool("migrate"); migrate {
		if err := database.Migrate(connectCtx); err != nil {
			return err
		}
	}

	client := newLLMClient(ctx, cfg, log)
	defer func() { _ = client.Close() }()

	deps := server.Deps{
		Store:           database,
		ResumeExtractor: newExtractor(client, prompts.KeyResumeSkills, cfg, log),
		JobExtractor:    newExtractor(client, prompts.KeyJobSkills, cfg, log),
		Logger:          log,
	}

	if cfg.Archive.Enabled() {
		a, err := archive.NewS3Archive(ctx, cfg.Archive)
		if err != nil {
			return err
		}
		deps.Archive = a
		log.Info("archiving uploads", zap.String("bucket", cfg.Archive.Bucket))
	}

	if cfg.Events.Enabled() {
		publisher, err := events.NewAMQPPublisher(cfg.Events.AMQPURL, cfg.Events.Exchange)
		if err != nil {
			return err
		}
		defer func() { _ = publisher.Close() }()
		deps.Events = publisher
		log.Info("publishing events", zap.String("exchange", cfg.Events.Exchange))
	}

	srv, err := server.New(cfg, deps)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	return srv.Start()
}

// newLLMClient builds the configured provider. Without an API key the server still
// starts; every model-backed route then reports the missing key.
func newLLMClient(ctx context.Context, cfg *config.AppConfig, log *zap.Logger) llm.Client {
	client, err := llm.NewClient(ctx, &llm.Config{
		Provider: llm.Provider(cfg.LLM.Provider),
		Model:    cfg.LLM.Model,
		APIKey:   cfg.LLM.APIKey,
		BaseURL:  cfg.LLM.BaseURL,
	})
	if err != nil {
		log.Warn("skill extraction disabled", zap.Error(err))
		return llm.Unavailable(err)
	}
	log.Info("skill extraction enabled",
		zap.String("provider", cfg.LLM.Provider),
		zap.String("model", client.Model()),
	)
	return client
}

func newExtractor(client llm.Client, promptKey string, cfg *config.AppConfig, log *zap.Logger) *skills.Extractor {
	return skills.NewExtractor(skills.LLMClassifier{Client: client}, skills.ExtractorConfig{
		Instruction: prompts.MustGet(prompts.SkillsFile, promptKey),
		Timeout:     cfg.LLM.Timeout,
		Logger:      log.Named(promptKey),
	})
}
