package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmehdipour/saas-gateway/internal/model"
	"github.com/jmoiron/sqlx"
)

type OrganizationsRepository interface {
	// GetByID returns (nil, nil) when the organization does not exist.
	GetByID(ctx context.Context, id string) (*model.Organization, error)
	Upsert(ctx context.Context, org model.Organization) error
}

type OrganizationsRepositoryImpl struct {
	db *sqlx.DB
}

func NewOrganizationsRepository(db *sqlx.DB) *OrganizationsRepositoryImpl {
	return &OrganizationsRepositoryImpl{db: db}
}

var _ OrganizationsRepository = (*OrganizationsRepositoryImpl)(nil)

func (r *OrganizationsRepositoryImpl) GetByID(ctx context.Context, id string) (*model.Organization, error) {
	var o model.Organization
	err := r.db.GetContext(ctx, &o, `
		SELECT id, name, owner_id, created_at
		  FROM organizations
		 WHERE id = ? LIMIT 1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// Upsert inserts or renames an organization keyed by id (used by seed).
func (r *OrganizationsRepositoryImpl) Upsert(ctx context.Context, org model.Organization) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO organizations (id, name, owner_id, created_at)
		VALUES (?, ?, ?, NOW(3))
		ON DUPLICATE KEY UPDATE
		    name     = VALUES(name),
		    owner_id = VALUES(owner_id)
	`, org.ID, org.Name, org.OwnerID)
	return err
}
