package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/leuf-systems/nexus/config"
	pgStorage "github.com/leuf-systems/nexus/internal/adapter/storage/postgres"
	"github.com/leuf-systems/nexus/internal/core/domain"
	"github.com/leuf-systems/nexus/internal/service"
	"github.com/leuf-systems/nexus/pkg/logger"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newSuperuserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "superuser USERNAME",
		Short: "Create a new API user with superuser rights",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load("")
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			return createSuperuser(cfg, args[0])
		},
	}
	return cmd
}

func createSuperuser(cfg *config.Config, username string) error {
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)
	ctx := context.Background()

	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	fmt.Print("password: ")
	password, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return fmt.Errorf("reading password: %w", err)
	}
	password = strings.TrimRight(password, "\r\n")

	hashSvc := service.NewArgon2HashService()
	hash, err := hashSvc.Hash(password)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	userRepo := pgStorage.NewAPIUserRepo(pool)
	user := &domain.APIUser{
		ID:           uuid.New(),
		Username:     username,
		PasswordHash: hash,
		Superuser:    true,
	}
	if err := userRepo.Create(ctx, user); err != nil {
		return fmt.Errorf("creating superuser %q: %w", username, err)
	}

	fmt.Printf("superuser %q created\n", username)
	return nil
}
