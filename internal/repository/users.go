package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/feichai0017/document-intake/internal/models"
)

const userColumns = `id, first_name, last_name, email, password, is_active, is_verified,
	verified_at, registered_at, created_at, updated_at`

// UserRepository persists accounts in the users table.
type UserRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts u and fills its generated id and timestamps. A concurrent
// insert of the same email surfaces as ErrDuplicate.
func (r *UserRepository) Create(ctx context.Context, u *models.User) error {
	const query = `
INSERT INTO users (first_name, last_name, email, password, is_active, is_verified, registered_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, created_at, updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		u.FirstName,
		u.LastName,
		u.Email,
		u.PasswordHash,
		u.IsActive,
		u.IsVerified,
		u.RegisteredAt,
	).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	return translate(err, "create user")
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := r.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	if err != nil {
		return nil, translate(err, "get user by email")
	}
	return &u, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	var u models.User
	err := r.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	if err != nil {
		return nil, translate(err, "get user by id")
	}
	return &u, nil
}
