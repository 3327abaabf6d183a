package services

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"sync"

	"github.com/samber/oops"
	"golang.org/x/crypto/bcrypt"

	"github.com/isdelr/teambuilder-be/internal/common"
	"github.com/isdelr/teambuilder-be/internal/database"
	"github.com/isdelr/teambuilder-be/internal/models"
)

// PasswordCost is the bcrypt work factor for every stored credential.
const PasswordCost = 12

// UserServiceProvider defines the interface for the credential store.
type UserServiceProvider interface {
	CreateUser(ctx context.Context, username, password string) (models.User, error)
	VerifyCredentials(ctx context.Context, username, password string) (*models.User, error)
	ChangePassword(ctx context.Context, id int64, newPassword string) error
	GetUserByID(ctx context.Context, id int64) (models.User, error)
	DeleteUser(ctx context.Context, id int64) error
}

// UserService persists accounts and their bcrypt credentials.
type UserService struct {
	db *database.DB
}

// NewUserService creates a new UserService.
func NewUserService(db *database.DB) *UserService {
	return &UserService{db: db}
}

// dummyHash is compared against when a username does not exist, so that an
// unknown user costs the same bcrypt work as a wrong password.
var dummyHash = sync.OnceValue(func() []byte {
	hash, err := bcrypt.GenerateFromPassword([]byte(rand.Text()), PasswordCost)
	if err != nil {
		panic(err)
	}
	return hash
})

func hashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), PasswordCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", oops.Code("PASSWORD_TOO_LONG").Wrap(common.ErrValidation)
		}
		return "", oops.Code("PASSWORD_HASH_FAILED").Wrap(err)
	}
	return string(hashed), nil
}

// CreateUser hashes the password and inserts a new account. Duplicate
// usernames are detected by the store's UNIQUE constraint at insert time.
func (s *UserService) CreateUser(ctx context.Context, username, password string) (user models.User, err error) {
	ctx, span := tracer.Start(ctx, "UserService.CreateUser")
	defer func() { endSpan(span, err) }()

	hashed, err := hashPassword(password)
	if err != nil {
		return models.User{}, err
	}

	user = models.User{Username: username, PasswordHash: hashed, CreatedAt: now()}
	err = s.db.QueryRowContext(ctx,
		s.db.Rebind(`INSERT INTO users (username, password_hash, created_at) VALUES (?, ?, ?) RETURNING id`),
		username, hashed, user.CreatedAt,
	).Scan(&user.ID)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return models.User{}, oops.Code("USERNAME_TAKEN").
				With("username", username).
				Wrap(common.ErrDuplicateUsername)
		}
		return models.User{}, oops.Code("USER_CREATE_FAILED").
			With("username", username).
			Wrap(err)
	}

	return user, nil
}

// VerifyCredentials returns the matching user, or nil when the username is
// unknown or the password is wrong. Errors are reserved for store failures.
func (s *UserService) VerifyCredentials(ctx context.Context, username, password string) (_ *models.User, err error) {
	ctx, span := tracer.Start(ctx, "UserService.VerifyCredentials")
	defer func() { endSpan(span, err) }()

	user, lookupErr := s.getUserByUsername(ctx, username)
	if lookupErr != nil && !errors.Is(lookupErr, common.ErrNotFound) {
		return nil, lookupErr
	}

	hash := dummyHash()
	if lookupErr == nil {
		hash = []byte(user.PasswordHash)
	}

	// Always run one comparison, found or not.
	if bcrypt.CompareHashAndPassword(hash, []byte(password)) != nil || lookupErr != nil {
		return nil, nil
	}
	return &user, nil
}

// ChangePassword stores a new hash for the user. The caller must have
// verified the old password already.
func (s *UserService) ChangePassword(ctx context.Context, id int64, newPassword string) (err error) {
	ctx, span := tracer.Start(ctx, "UserService.ChangePassword")
	defer func() { endSpan(span, err) }()

	hashed, err := hashPassword(newPassword)
	if err != nil {
		return err
	}

	return database.WithTx(ctx, s.db, func(ctx context.Context, tx database.DBTX) error {
		var existing int64
		err := tx.QueryRowContext(ctx, s.db.Rebind(`SELECT id FROM users WHERE id = ?`), id).Scan(&existing)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return oops.Code("USER_NOT_FOUND").With("user_id", id).Wrap(common.ErrNotFound)
			}
			return oops.Code("PASSWORD_CHANGE_FAILED").With("user_id", id).Wrap(err)
		}

		if _, err := tx.ExecContext(ctx, s.db.Rebind(`UPDATE users SET password_hash = ? WHERE id = ?`), hashed, id); err != nil {
			return oops.Code("PASSWORD_CHANGE_FAILED").With("user_id", id).Wrap(err)
		}
		return nil
	})
}

// GetUserByID retrieves a single user by their ID.
func (s *UserService) GetUserByID(ctx context.Context, id int64) (user models.User, err error) {
	ctx, span := tracer.Start(ctx, "UserService.GetUserByID")
	defer func() { endSpan(span, err) }()

	row := s.db.QueryRowContext(ctx, s.db.Rebind(`SELECT id, username, password_hash, created_at FROM users WHERE id = ?`), id)
	err = row.Scan(&user.ID, &user.Username, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, oops.Code("USER_NOT_FOUND").With("user_id", id).Wrap(common.ErrNotFound)
		}
		return models.User{}, oops.Code("USER_GET_FAILED").With("user_id", id).Wrap(err)
	}
	return user, nil
}

// getUserByUsername retrieves a single user by username, including the hash.
func (s *UserService) getUserByUsername(ctx context.Context, username string) (models.User, error) {
	var user models.User
	row := s.db.QueryRowContext(ctx, s.db.Rebind(`SELECT id, username, password_hash, created_at FROM users WHERE username = ?`), username)
	err := row.Scan(&user.ID, &user.Username, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, oops.Code("USER_NOT_FOUND").With("username", username).Wrap(common.ErrNotFound)
		}
		return models.User{}, oops.Code("USER_GET_FAILED").With("username", username).Wrap(err)
	}
	return user, nil
}

// DeleteUser removes an account. Its teams go with it through the
// ON DELETE CASCADE foreign key.
func (s *UserService) DeleteUser(ctx context.Context, id int64) (err error) {
	ctx, span := tracer.Start(ctx, "UserService.DeleteUser")
	defer func() { endSpan(span, err) }()

	res, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM users WHERE id = ?`), id)
	if err != nil {
		return oops.Code("USER_DELETE_FAILED").With("user_id", id).Wrap(err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return oops.Code("USER_DELETE_FAILED").With("user_id", id).Wrap(err)
	}
	if n == 0 {
		return oops.Code("USER_NOT_FOUND").With("user_id", id).Wrap(common.ErrNotFound)
	}
	return nil
}
