package postgres

import (
	"context"
	"errors"

	domain "accounts/backend/internal/domain/organisation"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"
)

// OrganisationRepository persists organisations and memberships in PostgreSQL.
type OrganisationRepository struct {
	pool pgxPool
}

var _ domain.Repository = (*OrganisationRepository)(nil)

// NewOrganisationRepository constructs a repository.
func NewOrganisationRepository(pool pgxPool) *OrganisationRepository {
	return &OrganisationRepository{pool: pool}
}

// Create inserts the organisation and its owner membership in one transaction.
func (r *OrganisationRepository) Create(ctx context.Context, org *domain.Organisation, ownerID string) (err error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return oops.With("operation", "begin create organisation").Wrap(err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	const insertOrg = `
INSERT INTO organisations (id, name, description, created_at)
VALUES ($1, $2, $3, $4)
`
	if _, err = tx.Exec(ctx, insertOrg, org.ID, org.Name, org.Description, org.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateName
		}
		return oops.With("operation", "insert organisation").Wrap(err)
	}

	const insertMember = `
INSERT INTO organisation_members (organisation_id, user_id, created_at)
VALUES ($1, $2, $3)
`
	if _, err = tx.Exec(ctx, insertMember, org.ID, ownerID, org.CreatedAt); err != nil {
		return oops.With("operation", "insert owner membership").Wrap(err)
	}

	if err = tx.Commit(ctx); err != nil {
		return oops.With("operation", "commit create organisation").Wrap(err)
	}
	return nil
}

// GetByID fetches an organisation by id.
func (r *OrganisationRepository) GetByID(ctx context.Context, id string) (*domain.Organisation, error) {
	const query = `SELECT id, name, description, created_at FROM organisations WHERE id = $1`
	return r.getOne(ctx, query, id)
}

// GetByName fetches an organisation using its unique name.
func (r *OrganisationRepository) GetByName(ctx context.Context, name string) (*domain.Organisation, error) {
	const query = `SELECT id, name, description, created_at FROM organisations WHERE name = $1`
	return r.getOne(ctx, query, name)
}

func (r *OrganisationRepository) getOne(ctx context.Context, query, arg string) (*domain.Organisation, error) {
	org, err := scanOrganisation(r.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, oops.With("operation", "get organisation").Wrap(err)
	}
	return org, nil
}

// ListByUser returns the organisations userID is a member of, sorted by name.
func (r *OrganisationRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Organisation, error) {
	const query = `
SELECT o.id, o.name, o.description, o.created_at
FROM organisations o
JOIN organisation_members m ON m.organisation_id = o.id
WHERE m.user_id = $1
ORDER BY o.name ASC
`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, oops.With("operation", "list organisations").Wrap(err)
	}
	defer rows.Close()

	var orgs []*domain.Organisation
	for rows.Next() {
		org, err := scanOrganisation(rows)
		if err != nil {
			return nil, oops.With("operation", "scan organisation").Wrap(err)
		}
		orgs = append(orgs, org)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.With("operation", "list organisations").Wrap(err)
	}
	return orgs, nil
}

// AddMember links userID to orgID; an existing membership is left untouched.
func (r *OrganisationRepository) AddMember(ctx context.Context, orgID, userID string) error {
	const query = `
INSERT INTO organisation_members (organisation_id, user_id)
VALUES ($1, $2)
ON CONFLICT (organisation_id, user_id) DO NOTHING
`
	if _, err := r.pool.Exec(ctx, query, orgID, userID); err != nil {
		return oops.With("operation", "add organisation member").Wrap(err)
	}
	return nil
}

// IsMember reports whether userID belongs to orgID.
func (r *OrganisationRepository) IsMember(ctx context.Context, orgID, userID string) (bool, error) {
	const query = `
SELECT EXISTS (
    SELECT 1 FROM organisation_members WHERE organisation_id = $1 AND user_id = $2
)
`
	var member bool
	if err := r.pool.QueryRow(ctx, query, orgID, userID).Scan(&member); err != nil {
		return false, oops.With("operation", "check membership").Wrap(err)
	}
	return member, nil
}

func scanOrganisation(row pgx.Row) (*domain.Organisation, error) {
	var o domain.Organisation
	if err := row.Scan(&o.ID, &o.Name, &o.Description, &o.CreatedAt); err != nil {
		return nil, err
	}
	return &o, nil
}
