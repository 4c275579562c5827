package router

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/callcenter-console/internal/models"
)

const userColumns = "id, username, full_name, role, status, phone_extension, created_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner, extra ...any) (*models.User, error) {
	var (
		user      models.User
		phone     sql.NullString
		createdAt sql.NullTime
	)
	dest := []any{&user.ID, &user.Username, &user.FullName, &user.Role, &user.Status, &phone, &createdAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	user.PhoneExtension = phone.String
	if createdAt.Valid {
		t := createdAt.Time
		user.CreatedAt = &t
	}
	return &user, nil
}

// Authenticate checks the credentials and returns the matching user.
func (r *Router) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	username = models.NormalizeUsername(username)
	if username == "" || password == "" {
		return nil, models.ErrMissingFields
	}

	var hash string
	row := r.queryRow(ctx, r.db, "SELECT "+userColumns+", password FROM users WHERE username = ?", username)
	user, err := scanUser(row, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return nil, models.ErrInvalidCredentials
	}
	return user, nil
}

// ListUsers returns all users ordered by id.
func (r *Router) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, err := r.query(ctx, r.db, "SELECT "+userColumns+" FROM users ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]models.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	return users, rows.Err()
}

// CreateUser stores a new user and returns its id. The role defaults to
// operator and new accounts start offline.
func (r *Router) CreateUser(ctx context.Context, req models.CreateUserRequest) (int64, error) {
	username := models.NormalizeUsername(req.Username)
	fullName := strings.TrimSpace(req.FullName)
	if username == "" || req.Password == "" || fullName == "" {
		return 0, models.ErrMissingFields
	}

	role := req.Role
	if role == "" {
		role = models.RoleOperator
	}
	if !role.Valid() {
		return 0, models.ErrInvalidRole
	}

	taken, err := r.usernameTaken(ctx, username, 0)
	if err != nil {
		return 0, err
	}
	if taken {
		return 0, models.ErrUserAlreadyExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), r.bcryptCost)
	if err != nil {
		return 0, fmt.Errorf("failed to hash password: %w", err)
	}

	id, err := r.insert(ctx, r.db,
		"INSERT INTO users (username, password, full_name, role, status, phone_extension, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		username, string(hash), fullName, role, models.UserStatusOffline, req.PhoneExtension, r.now(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to create user: %w", err)
	}

	log.Printf("[ROUTER] Created user %q (id=%d, role=%s)", username, id, role)
	return id, nil
}

// UpdateUser changes only the fields present in req.
func (r *Router) UpdateUser(ctx context.Context, req models.UpdateUserRequest) error {
	exists, err := r.userExists(ctx, req.ID)
	if err != nil {
		return err
	}
	if !exists {
		return models.ErrUserNotFound
	}

	var (
		fields []string
		values []any
	)

	if req.Username != nil {
		username := models.NormalizeUsername(*req.Username)
		if username == "" {
			return models.ErrMissingFields
		}
		taken, err := r.usernameTaken(ctx, username, req.ID)
		if err != nil {
			return err
		}
		if taken {
			return models.ErrUserAlreadyExists
		}
		fields = append(fields, "username = ?")
		values = append(values, username)
	}
	if req.Password != nil && *req.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), r.bcryptCost)
		if err != nil {
			return fmt.Errorf("failed to hash password: %w", err)
		}
		fields = append(fields, "password = ?")
		values = append(values, string(hash))
	}
	if req.FullName != nil {
		fullName := strings.TrimSpace(*req.FullName)
		if fullName == "" {
			return models.ErrMissingFields
		}
		fields = append(fields, "full_name = ?")
		values = append(values, fullName)
	}
	if req.Role != nil {
		if !req.Role.Valid() {
			return models.ErrInvalidRole
		}
		fields = append(fields, "role = ?")
		values = append(values, *req.Role)
	}
	if req.Status != nil {
		if !req.Status.Valid() {
			return models.ErrInvalidStatus
		}
		fields = append(fields, "status = ?")
		values = append(values, *req.Status)
	}
	if req.PhoneExtension != nil {
		fields = append(fields, "phone_extension = ?")
		values = append(values, *req.PhoneExtension)
	}

	fields = append(fields, "updated_at = ?")
	values = append(values, r.now(), req.ID)

	query := "UPDATE users SET " + strings.Join(fields, ", ") + " WHERE id = ?"
	if _, err := r.exec(ctx, r.db, query, values...); err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

// DeleteUser removes a user. Calls keep their history; the operator name
// simply stops resolving.
func (r *Router) DeleteUser(ctx context.Context, id int64) error {
	res, err := r.exec(ctx, r.db, "DELETE FROM users WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return models.ErrUserNotFound
	}
	log.Printf("[ROUTER] Deleted user id=%d", id)
	return nil
}

func (r *Router) userExists(ctx context.Context, id int64) (bool, error) {
	var one int
	err := r.queryRow(ctx, r.db, "SELECT 1 FROM users WHERE id = ?", id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

func (r *Router) usernameTaken(ctx context.Context, username string, exceptID int64) (bool, error) {
	var id int64
	err := r.queryRow(ctx, r.db, "SELECT id FROM users WHERE username = ?", username).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return id != exceptID, nil
}
