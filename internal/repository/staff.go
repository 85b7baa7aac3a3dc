package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ncpharmacy/backend/internal/domain"

	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"
)

func (r *Repository) ListStaff(ctx context.Context) ([]domain.StaffUser, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, username, password_hash, role, created_at
		FROM staff_users
		ORDER BY username ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list staff: %w", err)
	}
	defer rows.Close()

	staff := make([]domain.StaffUser, 0)
	for rows.Next() {
		user, err := scanStaff(rows)
		if err != nil {
			return nil, err
		}
		staff = append(staff, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate staff: %w", err)
	}

	for i := range staff {
		perms, err := r.staffPermissions(ctx, staff[i].ID)
		if err != nil {
			return nil, err
		}
		staff[i].Permissions = perms
	}
	return staff, nil
}

func (r *Repository) GetStaffByID(ctx context.Context, id int64) (*domain.StaffUser, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, username, password_hash, role, created_at
		FROM staff_users
		WHERE id = $1
	`, id)
	return r.finishStaffRow(ctx, row)
}

func (r *Repository) GetStaffByUsername(ctx context.Context, username string) (*domain.StaffUser, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, username, password_hash, role, created_at
		FROM staff_users
		WHERE username = $1
	`, strings.TrimSpace(username))
	return r.finishStaffRow(ctx, row)
}

func (r *Repository) finishStaffRow(ctx context.Context, row pgx.Row) (*domain.StaffUser, error) {
	user, err := scanStaff(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get staff user: %w", err)
	}
	perms, err := r.staffPermissions(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	user.Permissions = perms
	return &user, nil
}

func (r *Repository) CreateStaff(ctx context.Context, username, password, role string) (*domain.StaffUser, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, fmt.Errorf("username is required")
	}
	if len(password) < 6 {
		return nil, fmt.Errorf("password must be at least 6 characters")
	}
	if role != domain.RoleAdmin && role != domain.RoleStaff {
		role = domain.RoleStaff
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO staff_users (username, password_hash, role)
		VALUES ($1, $2, $3)
		RETURNING id, username, password_hash, role, created_at
	`, username, string(hash), role)
	user, err := scanStaff(row)
	if err != nil {
		return nil, fmt.Errorf("create staff %q: %w", username, err)
	}
	user.Permissions = []string{}
	return &user, nil
}

// Authenticate checks credentials and returns the account on success, or
// nil with no error on a wrong username or password.
func (r *Repository) Authenticate(ctx context.Context, username, password string) (*domain.StaffUser, error) {
	user, err := r.GetStaffByUsername(ctx, username)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, nil
	}
	return user, nil
}

func (r *Repository) UpdateStaffPassword(ctx context.Context, id int64, password string) error {
	if len(password) < 6 {
		return fmt.Errorf("password must be at least 6 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	cmd, err := r.pool.Exec(ctx,
		"UPDATE staff_users SET password_hash = $2 WHERE id = $1",
		id, string(hash),
	)
	if err != nil {
		return fmt.Errorf("update staff password: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) DeleteStaff(ctx context.Context, id int64) error {
	cmd, err := r.pool.Exec(ctx, "DELETE FROM staff_users WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete staff %d: %w", id, err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetStaffPermissions replaces the whole grant set for one account.
func (r *Repository) SetStaffPermissions(ctx context.Context, id int64, codes []string) error {
	valid := make([]string, 0, len(codes))
	for _, code := range codes {
		code = strings.TrimSpace(code)
		known := false
		for _, candidate := range domain.AllPermissions {
			if candidate == code {
				known = true
				break
			}
		}
		if !known {
			return fmt.Errorf("unknown permission code: %q", code)
		}
		valid = append(valid, code)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin permissions tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var exists bool
	if err := tx.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM staff_users WHERE id = $1)", id,
	).Scan(&exists); err != nil {
		return fmt.Errorf("check staff %d: %w", id, err)
	}
	if !exists {
		return ErrNotFound
	}

	if _, err := tx.Exec(ctx, "DELETE FROM staff_permissions WHERE staff_id = $1", id); err != nil {
		return fmt.Errorf("clear staff permissions: %w", err)
	}
	for _, code := range valid {
		if _, err := tx.Exec(ctx, `
			INSERT INTO staff_permissions (staff_id, code) VALUES ($1, $2)
			ON CONFLICT DO NOTHING
		`, id, code); err != nil {
			return fmt.Errorf("grant permission %q: %w", code, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit permissions tx: %w", err)
	}
	return nil
}

// EnsureDefaultAdmin creates the bootstrap admin account if it does not
// exist, and re-syncs its role to admin if something demoted it.
func (r *Repository) EnsureDefaultAdmin(ctx context.Context, username, password string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return fmt.Errorf("admin username is required")
	}

	existing, err := r.GetStaffByUsername(ctx, username)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	if existing != nil {
		if existing.Role != domain.RoleAdmin {
			if _, err := r.pool.Exec(ctx,
				"UPDATE staff_users SET role = $2 WHERE id = $1",
				existing.ID, domain.RoleAdmin,
			); err != nil {
				return fmt.Errorf("re-sync admin role: %w", err)
			}
		}
		return nil
	}

	if password == "" {
		return fmt.Errorf("ADMIN_PASSWORD is required to create the bootstrap admin %q", username)
	}
	if _, err := r.CreateStaff(ctx, username, password, domain.RoleAdmin); err != nil {
		return err
	}
	return nil
}

func (r *Repository) staffPermissions(ctx context.Context, staffID int64) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT code FROM staff_permissions WHERE staff_id = $1 ORDER BY code ASC",
		staffID,
	)
	if err != nil {
		return nil, fmt.Errorf("staff permissions %d: %w", staffID, err)
	}
	defer rows.Close()

	codes := make([]string, 0)
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("scan permission: %w", err)
		}
		codes = append(codes, code)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate permissions: %w", err)
	}
	return codes, nil
}

func scanStaff(row pgx.Row) (domain.StaffUser, error) {
	var user domain.StaffUser
	if err := row.Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.Role,
		&user.CreatedAt,
	); err != nil {
		return domain.StaffUser{}, err
	}
	return user, nil
}
