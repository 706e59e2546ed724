package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"messaging-service/internal/models"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrUsernameTaken = errors.New("username already exists")
	ErrWalletTaken   = errors.New("wallet address already exists")
)

// UserRepository abstracts user persistence.
type UserRepository interface {
	CreateUser(ctx context.Context, username, walletAddress, publicKey string) (models.User, error)
	GetUser(ctx context.Context, userID string) (models.User, error)
	GetUserByWallet(ctx context.Context, walletAddress string) (models.User, error)
	ListUsersExcept(ctx context.Context, userID string) ([]models.User, error)
	TouchLastSeen(ctx context.Context, userID string) error
}

// UserRepo is a sqlx implementation of UserRepository.
type UserRepo struct {
	db *sqlx.DB
}

// NewUserRepo constructs a UserRepo.
func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

// CreateUser inserts a new user. Username and wallet address uniqueness is
// checked up front so callers get a typed conflict error; the UNIQUE
// constraints remain the backstop.
func (r *UserRepo) CreateUser(ctx context.Context, username, walletAddress, publicKey string) (models.User, error) {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, r.db.Rebind(`SELECT EXISTS(SELECT 1 FROM users WHERE username=?)`), username); err != nil {
		return models.User{}, err
	}
	if exists {
		return models.User{}, ErrUsernameTaken
	}
	if err := r.db.GetContext(ctx, &exists, r.db.Rebind(`SELECT EXISTS(SELECT 1 FROM users WHERE wallet_address=?)`), walletAddress); err != nil {
		return models.User{}, err
	}
	if exists {
		return models.User{}, ErrWalletTaken
	}

	now := time.Now().UTC()
	user := models.User{
		ID:            uuid.NewString(),
		Username:      username,
		WalletAddress: walletAddress,
		PublicKey:     publicKey,
		CreatedAt:     now,
		LastSeen:      now,
	}
	_, err := r.db.ExecContext(ctx, r.db.Rebind(
		`INSERT INTO users (id, username, wallet_address, public_key, created_at, last_seen) VALUES (?, ?, ?, ?, ?, ?)`),
		user.ID, user.Username, user.WalletAddress, user.PublicKey, user.CreatedAt, user.LastSeen)
	if err != nil {
		// A concurrent registration can slip in between the checks and the
		// insert; the constraint violation still maps to the typed conflict.
		if isUniqueViolation(err) {
			if checkErr := r.db.GetContext(ctx, &exists, r.db.Rebind(`SELECT EXISTS(SELECT 1 FROM users WHERE username=?)`), username); checkErr == nil && exists {
				return models.User{}, ErrUsernameTaken
			}
			return models.User{}, ErrWalletTaken
		}
		return models.User{}, err
	}
	return user, nil
}

// GetUser fetches a user by id.
func (r *UserRepo) GetUser(ctx context.Context, userID string) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, r.db.Rebind(
		`SELECT id, username, wallet_address, public_key, created_at, last_seen FROM users WHERE id=?`), userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

// GetUserByWallet fetches a user by wallet address.
func (r *UserRepo) GetUserByWallet(ctx context.Context, walletAddress string) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, r.db.Rebind(
		`SELECT id, username, wallet_address, public_key, created_at, last_seen FROM users WHERE wallet_address=?`), walletAddress)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

// ListUsersExcept returns every user but the caller.
func (r *UserRepo) ListUsersExcept(ctx context.Context, userID string) ([]models.User, error) {
	var users []models.User
	err := r.db.SelectContext(ctx, &users, r.db.Rebind(
		`SELECT id, username, wallet_address, public_key, created_at, last_seen FROM users WHERE id<>? ORDER BY username ASC`), userID)
	return users, err
}

// TouchLastSeen stamps the user's last-seen time.
func (r *UserRepo) TouchLastSeen(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE users SET last_seen=? WHERE id=?`), time.Now().UTC(), userID)
	return err
}
