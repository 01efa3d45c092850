package cmd

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/jmehdipour/saas-gateway/internal/db"
	"github.com/jmehdipour/saas-gateway/internal/model"
	"github.com/jmehdipour/saas-gateway/internal/repository"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var seedOwner string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with demo organizations",
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, err := canonicalOwner(seedOwner)
		if err != nil {
			return err
		}

		cfg, log, err := bootstrap()
		if err != nil {
			return err
		}

		sqlDB, err := db.NewMySQLConnection(cfg.MySQL)
		if err != nil {
			return fmt.Errorf("mysql connect: %w", err)
		}
		defer sqlDB.Close()

		repo := repository.NewOrganizationsRepository(sqlDB)
		for _, org := range demoOrganizations(owner) {
			if err := repo.Upsert(cmd.Context(), org); err != nil {
				return fmt.Errorf("upsert organization %q: %w", org.ID, err)
			}
			log.Info("seeded organization", zap.String("id", org.ID), zap.String("owner_id", org.OwnerID))
		}
		return nil
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedOwner, "owner", "00000000-0000-4000-8000-000000000001", "owner user id (JWT sub) for the demo organizations")
}

// canonicalOwner returns owner in the lower-case form bearer tokens resolve to.
func canonicalOwner(owner string) (string, error) {
	id, err := uuid.Parse(owner)
	if err != nil {
		return "", fmt.Errorf("owner must be a UUID: %w", err)
	}
	return id.String(), nil
}

// demoOrganizations returns deterministic demo organizations (idempotent upsert).
func demoOrganizations(owner string) []model.Organization {
	return []model.Organization{
		{ID: "org-acme", Name: "Acme Corp", OwnerID: owner},
		{ID: "org-foobar", Name: "Foobar LLC", OwnerID: owner},
		{ID: "org-other", Name: "Someone Else Ltd", OwnerID: "00000000-0000-4000-8000-000000000002"},
	}
}
