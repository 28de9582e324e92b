package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/uptrace/bun"

	"github.com/redmonkez12/taskhub-api/internal/database"
)

var (
	ErrNotFound          = errors.New("user not found")
	ErrDuplicateEmail    = errors.New("email already exists")
	ErrDuplicateUsername = errors.New("username already exists")
)

// Store is the persistence contract for users.
type Store interface {
	Create(ctx context.Context, params CreateParams) (*User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByIDAndEmail(ctx context.Context, id uuid.UUID, email string) (*User, error)
	Activate(ctx context.Context, id uuid.UUID) (bool, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	UpdateProfile(ctx context.Context, id uuid.UUID, update ProfileUpdate) (*User, error)
	// ListActive returns one page of active users, oldest first, and the
	// total number of active users.
	ListActive(ctx context.Context, page Page) ([]User, int, error)
	// WithinTx runs fn against a Store bound to a single transaction. The
	// transaction is rolled back when fn returns an error.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}

// Repository handles user data persistence
type Repository struct {
	db bun.IDB
}

func NewRepository(db *bun.DB) *Repository {
	return &Repository{db: db}
}

var _ Store = (*Repository)(nil)

// Create inserts a new, inactive user.
func (r *Repository) Create(ctx context.Context, params CreateParams) (*User, error) {
	dbUser := &database.User{
		Username:     params.Username,
		Email:        params.Email,
		FirstName:    params.FirstName,
		LastName:     params.LastName,
		PasswordHash: params.PasswordHash,
		IsActive:     false,
	}

	_, err := r.db.NewInsert().
		Model(dbUser).
		Returning("*").
		Exec(ctx)
	if err != nil {
		if dup := duplicateError(err); dup != nil {
			return nil, dup
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return mapDBUserToModel(dbUser), nil
}

// GetByID retrieves a user by ID
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return r.getOne(ctx, "get user by id", func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("id = ?", id)
	})
}

// GetByEmail retrieves a user by email
func (r *Repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.getOne(ctx, "get user by email", func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("email = ?", email)
	})
}

// GetByIDAndEmail retrieves a user only if both the id and the current email
// match. Tokens carry both, so a changed email invalidates older tokens.
func (r *Repository) GetByIDAndEmail(ctx context.Context, id uuid.UUID, email string) (*User, error) {
	return r.getOne(ctx, "get user by id and email", func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("id = ?", id).Where("email = ?", email)
	})
}

func (r *Repository) getOne(ctx context.Context, op string, where func(*bun.SelectQuery) *bun.SelectQuery) (*User, error) {
	dbUser := new(database.User)
	err := where(r.db.NewSelect().Model(dbUser)).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}

	return mapDBUserToModel(dbUser), nil
}

// Activate marks the account active. It reports whether the flag changed;
// activating an already active account is not an error.
func (r *Repository) Activate(ctx context.Context, id uuid.UUID) (bool, error) {
	result, err := r.db.NewUpdate().
		Model((*database.User)(nil)).
		Set("is_active = ?", true).
		Set("updated_at = NOW()").
		Where("id = ?", id).
		Where("is_active = ?", false).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to activate user: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// Deactivate marks the account inactive.
func (r *Repository) Deactivate(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.NewUpdate().
		Model((*database.User)(nil)).
		Set("is_active = ?", false).
		Set("updated_at = NOW()").
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to deactivate user: %w", err)
	}

	return requireRow(result)
}

// UpdatePassword updates a user's password hash
func (r *Repository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	result, err := r.db.NewUpdate().
		Model((*database.User)(nil)).
		Set("password_hash = ?", passwordHash).
		Set("updated_at = NOW()").
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	return requireRow(result)
}

// UpdateProfile applies the non-nil fields of update and returns the user.
func (r *Repository) UpdateProfile(ctx context.Context, id uuid.UUID, update ProfileUpdate) (*User, error) {
	if update.IsEmpty() {
		return r.GetByID(ctx, id)
	}

	dbUser := new(database.User)
	result, err := r.profileUpdateQuery(dbUser, id, update).Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	if err := requireRow(result); err != nil {
		return nil, err
	}

	return mapDBUserToModel(dbUser), nil
}

func (r *Repository) profileUpdateQuery(dbUser *database.User, id uuid.UUID, update ProfileUpdate) *bun.UpdateQuery {
	q := r.db.NewUpdate().
		Model(dbUser).
		Set("updated_at = NOW()").
		Where("id = ?", id).
		Returning("*")

	for _, f := range []struct {
		column string
		value  *string
	}{
		{"first_name", update.FirstName},
		{"last_name", update.LastName},
		{"phone_no", update.PhoneNo},
		{"bio", update.Bio},
		{"profile_pic", update.ProfilePic},
	} {
		if f.value != nil {
			q = q.Set("? = ?", bun.Ident(f.column), *f.value)
		}
	}
	return q
}

// ListActive implements Store.
func (r *Repository) ListActive(ctx context.Context, page Page) ([]User, int, error) {
	var dbUsers []database.User
	total, err := r.activeUsersQuery(&dbUsers, page).ScanAndCount(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list active users: %w", err)
	}

	users := make([]User, 0, len(dbUsers))
	for i := range dbUsers {
		users = append(users, *mapDBUserToModel(&dbUsers[i]))
	}
	return users, total, nil
}

func (r *Repository) activeUsersQuery(dest *[]database.User, page Page) *bun.SelectQuery {
	return r.db.NewSelect().
		Model(dest).
		Where("is_active = ?", true).
		OrderExpr("created_at ASC, id ASC").
		Limit(page.Limit).
		Offset(page.Offset)
}

// WithinTx implements Store.
func (r *Repository) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	db, ok := r.db.(*bun.DB)
	if !ok {
		// Already inside a transaction.
		return fn(ctx, r)
	}

	return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, &Repository{db: tx})
	})
}

func requireRow(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// duplicateError maps a Postgres unique violation onto the matching
// sentinel, or returns nil.
func duplicateError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != "23505" {
		return nil
	}

	switch pqErr.Constraint {
	case database.UsersUsernameUnique:
		return ErrDuplicateUsername
	default:
		return ErrDuplicateEmail
	}
}

// mapDBUserToModel converts database model to domain model
func mapDBUserToModel(dbu *database.User) *User {
	return &User{
		ID:           dbu.ID,
		Username:     dbu.Username,
		Email:        dbu.Email,
		FirstName:    dbu.FirstName,
		LastName:     dbu.LastName,
		PhoneNo:      dbu.PhoneNo,
		Bio:          dbu.Bio,
		ProfilePic:   dbu.ProfilePic,
		PasswordHash: dbu.PasswordHash,
		IsActive:     dbu.IsActive,
		CreatedAt:    dbu.CreatedAt,
		UpdatedAt:    dbu.UpdatedAt,
	}
}
