package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// UsersTable lives in every school namespace; statements never qualify it, so
// the connection binding decides which school's rows they touch.
const UsersTable = "users"

const userColumns = "user_id, email, full_name, created_at, updated_at"

// User represents a row in a school's users table.
type User struct {
	UserID    uuid.UUID `db:"user_id"`
	Email     string    `db:"email"`
	FullName  string    `db:"full_name"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

var (
	// ErrUserNotFound indicates a missing user record.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserConflict indicates a uniqueness violation (e.g., duplicated email).
	ErrUserConflict = errors.New("user conflict")
)

// UserStore reads the users table of whichever school the context is scoped to.
type UserStore struct {
	exec *ScopedExecutor
}

func NewUserStore(exec *ScopedExecutor) *UserStore {
	if exec == nil {
		panic("UserStore requires executor")
	}
	return &UserStore{exec: exec}
}

// ListUsersParams captures filters and pagination for ListUsers.
type ListUsersParams struct {
	Page     int
	PageSize int
	Sort     *string
	Email    *string
}

// ListUsersResult includes the rows and the total count for pagination metadata.
type ListUsersResult struct {
	Users      []User
	TotalItems int
}

// CreateUserParams captures the fields required to insert a new user record.
type CreateUserParams struct {
	UserID   uuid.UUID
	Email    string
	FullName string
}

// CreateUser inserts a new user into the scoped school and returns the persisted record.
func (s *UserStore) CreateUser(ctx context.Context, params CreateUserParams) (User, error) {
	if params.UserID == uuid.Nil {
		return User{}, errors.New("user id is required")
	}

	query := fmt.Sprintf(`
        INSERT INTO %s (user_id, email, full_name)
        VALUES ($1, $2, $3)
        RETURNING %s
    `, UsersTable, userColumns)

	user, err := CollectOne[User](ctx, s.exec, query,
		params.UserID,
		strings.ToLower(strings.TrimSpace(params.Email)),
		strings.TrimSpace(params.FullName),
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return User{}, ErrUserConflict
		}
		return User{}, err
	}
	return user, nil
}

// ListUsers returns users matching the filters with pagination applied.
func (s *UserStore) ListUsers(ctx context.Context, params ListUsersParams) (ListUsersResult, error) {
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize <= 0 {
		params.PageSize = 20
	}
	if params.PageSize > 100 {
		params.PageSize = 100
	}

	whereSQL := "1=1"
	var args []any
	if params.Email != nil && strings.TrimSpace(*params.Email) != "" {
		args = append(args, "%"+strings.ToLower(strings.TrimSpace(*params.Email))+"%")
		whereSQL = fmt.Sprintf("LOWER(email) LIKE $%d", len(args))
	}

	orderSQL, err := buildUserOrderBy(params.Sort)
	if err != nil {
		return ListUsersResult{}, err
	}

	// Count and page share one transaction so both read the same snapshot on one binding.
	result := ListUsersResult{Users: []User{}}
	err = s.exec.WithTx(ctx, func(tx pgx.Tx) error {
		countQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", UsersTable, whereSQL)
		if err := tx.QueryRow(ctx, countQuery, args...).Scan(&result.TotalItems); err != nil {
			return fmt.Errorf("count users: %w", err)
		}
		if result.TotalItems == 0 {
			return nil
		}

		dataArgs := append(append([]any{}, args...), params.PageSize, (params.Page-1)*params.PageSize)
		query := fmt.Sprintf(`
            SELECT %s
            FROM %s
            WHERE %s
            %s
            LIMIT $%d OFFSET $%d
        `, userColumns, UsersTable, whereSQL, orderSQL, len(dataArgs)-1, len(dataArgs))

		rows, err := tx.Query(ctx, query, dataArgs...)
		if err != nil {
			return fmt.Errorf("list users: %w", err)
		}
		users, err := pgx.CollectRows(rows, pgx.RowToStructByName[User])
		if err != nil {
			return fmt.Errorf("scan users: %w", err)
		}
		result.Users = users
		return nil
	})
	if err != nil {
		return ListUsersResult{}, err
	}
	return result, nil
}

var userSortColumns = map[string]string{
	"email":     "email",
	"fullName":  "full_name",
	"createdAt": "created_at",
	"updatedAt": "updated_at",
}

func buildUserOrderBy(sort *string) (string, error) {
	const defaultOrder = "ORDER BY created_at DESC"
	if sort == nil || strings.TrimSpace(*sort) == "" {
		return defaultOrder, nil
	}

	var clauses []string
	for _, raw := range strings.Split(strings.TrimSpace(*sort), ",") {
		f := strings.TrimSpace(raw)
		if f == "" {
			continue
		}

		direction := "ASC"
		if strings.HasPrefix(f, "-") {
			direction = "DESC"
			f = strings.TrimPrefix(f, "-")
		}

		column, ok := userSortColumns[f]
		if !ok {
			return "", fmt.Errorf("unsupported sort field %q", f)
		}
		clauses = append(clauses, column+" "+direction)
	}

	if len(clauses) == 0 {
		return defaultOrder, nil
	}
	return "ORDER BY " + strings.Join(clauses, ", "), nil
}

// GetUser returns a single user of the scoped school.
func (s *UserStore) GetUser(ctx context.Context, id uuid.UUID) (User, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE user_id = $1", userColumns, UsersTable)
	user, err := CollectOne[User](ctx, s.exec, query, id)
	if errors.Is(err, ErrRowNotFound) {
		return User{}, ErrUserNotFound
	}
	return user, err
}
