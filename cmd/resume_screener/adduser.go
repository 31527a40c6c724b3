package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonathan/resume-screener/internal/config"
	"github.com/jonathan/resume-screener/internal/db"
	"github.com/jonathan/resume-screener/internal/server"
)

var adduserCmd = &cobra.Command{
	Use:   "adduser",
	Short: "Create an account interactively",
	RunE:  runAddUser,
}

func init() {
	rootCmd.AddCommand(adduserCmd)
}

func runAddUser(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}

	req, err := promptRegistration()
	if err != nil {
		return err
	}
	if err := validator.New().Struct(req); err != nil {
		return err
	}

	passwordConfig, err := config.NewPasswordConfig(cfg.Auth)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	database, err := db.Connect(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer database.Close()

	user, err := server.NewUserService(database, passwordConfig).Register(ctx, req)
	if err != nil {
		return err
	}
	log.Info("user created", zap.String("username", user.Username), zap.Stringer("id", user.ID))
	return nil
}

func promptRegistration() (*server.RegisterRequest, error) {
	username, err := (&promptui.Prompt{
		Label:    "Username",
		Validate: minLength(3),
	}).Run()
	if err != nil {
		return nil, err
	}

	password, err := (&promptui.Prompt{
		Label:    "Password",
		Mask:     '*',
		Validate: minLength(8),
	}).Run()
	if err != nil {
		return nil, err
	}

	email, err := (&promptui.Prompt{Label: "Email (optional)"}).Run()
	if err != nil {
		return nil, err
	}

	req := &server.RegisterRequest{Username: strings.TrimSpace(username), Password: password}
	if email = strings.TrimSpace(email); email != "" {
		req.Email = &email
	}

	_, answer, err := (&promptui.Select{
		Label: fmt.Sprintf("Create user %q?", req.Username),
		Items: []string{"Yes", "No"},
	}).Run()
	if err != nil {
		return nil, err
	}
	if answer != "Yes" {
		return nil, errors.New("aborted")
	}
	return req, nil
}

func minLength(n int) promptui.ValidateFunc {
	return func(input string) error {
		if len(strings.TrimSpace(input)) < n {
			return fmt.Errorf("must be at least %d characters", n)
		}
		return nil
	}
}
