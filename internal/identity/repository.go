package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/congo-pay/walletgate/internal/api"
)

// Repository errors
var (
	ErrNotFound     = errors.New("identity: user not found")
	ErrEmailTaken   = errors.New("identity: email already registered")
	ErrAddressTaken = errors.New("identity: wallet already registered")
)

// Repository persists users.
type Repository interface {
	Create(ctx context.Context, user User) error
	FindByID(ctx context.Context, id string) (User, error)
	FindByAddress(ctx context.Context, address string) (User, error)
	Update(ctx context.Context, user User) error
}

const userColumns = `id, address, email, first_name, last_name, partner_id, kyc_status,
	source_of_funds_answered, phone_validated, status, safe_address, deploy_requested_at,
	accepted_terms, created_at`

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed identity repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// EnsureSchema creates the users table when missing.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `CREATE TABLE IF NOT EXISTS wallet_users (
		id UUID PRIMARY KEY,
		address TEXT NOT NULL UNIQUE,
		email TEXT NOT NULL UNIQUE,
		first_name TEXT NOT NULL DEFAULT '',
		last_name TEXT NOT NULL DEFAULT '',
		partner_id TEXT NOT NULL DEFAULT '',
		kyc_status TEXT NOT NULL,
		source_of_funds_answered BOOLEAN NOT NULL DEFAULT FALSE,
		phone_validated BOOLEAN NOT NULL DEFAULT FALSE,
		status TEXT NOT NULL,
		safe_address TEXT NOT NULL DEFAULT '',
		deploy_requested_at TIMESTAMPTZ,
		accepted_terms JSONB NOT NULL DEFAULT '{}'::jsonb,
		created_at TIMESTAMPTZ NOT NULL
	)`)
	return err
}

// Create inserts a new user.
func (r *PostgresRepository) Create(ctx context.Context, user User) error {
	userID, err := uuid.Parse(user.ID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO wallet_users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		userID, strings.ToLower(user.Address), user.Email, user.FirstName, user.LastName, user.PartnerID,
		string(user.KycStatus), user.IsSourceOfFundsAnswered, user.IsPhoneValidated, string(user.Status),
		user.SafeAddress, user.DeployRequestedAt, termsOrEmpty(user.AcceptedTerms), user.CreatedAt.UTC())
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		if strings.Contains(pgErr.ConstraintName, "email") {
			return ErrEmailTaken
		}
		return ErrAddressTaken
	}
	return err
}

// FindByID fetches a user by id.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (User, error) {
	userID, err := uuid.Parse(id)
	if err != nil {
		return User{}, ErrNotFound
	}
	return r.scan(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM wallet_users WHERE id = $1`, userID))
}

// FindByAddress fetches the user owning a wallet address.
func (r *PostgresRepository) FindByAddress(ctx context.Context, address string) (User, error) {
	return r.scan(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM wallet_users WHERE address = $1`, strings.ToLower(address)))
}

// Update overwrites the mutable fields of a user.
func (r *PostgresRepository) Update(ctx context.Context, user User) error {
	userID, err := uuid.Parse(user.ID)
	if err != nil {
		return ErrNotFound
	}
	cmd, err := r.db.Exec(ctx, `UPDATE wallet_users SET first_name = $2, last_name = $3, kyc_status = $4,
		source_of_funds_answered = $5, phone_validated = $6, status = $7, safe_address = $8,
		deploy_requested_at = $9, accepted_terms = $10 WHERE id = $1`,
		userID, user.FirstName, user.LastName, string(user.KycStatus), user.IsSourceOfFundsAnswered,
		user.IsPhoneValidated, string(user.Status), user.SafeAddress, user.DeployRequestedAt,
		termsOrEmpty(user.AcceptedTerms))
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) scan(row pgx.Row) (User, error) {
	var (
		id        uuid.UUID
		kyc       string
		status    string
		createdAt time.Time
		user      User
	)
	err := row.Scan(&id, &user.Address, &user.Email, &user.FirstName, &user.LastName, &user.PartnerID, &kyc,
		&user.IsSourceOfFundsAnswered, &user.IsPhoneValidated, &status, &user.SafeAddress,
		&user.DeployRequestedAt, &user.AcceptedTerms, &createdAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	user.ID = id.String()
	user.KycStatus = api.KycStatus(kyc)
	user.Status = api.AccountStatus(status)
	user.CreatedAt = createdAt.UTC()
	return user, nil
}

func termsOrEmpty(terms map[string]string) map[string]string {
	if terms == nil {
		return map[string]string{}
	}
	return terms
}
