package pgrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/balozi/core/user"
)

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) *userRepository {
	return &userRepository{db: db}
}

type userRow struct {
	ID           string         `db:"id"`
	Name         string         `db:"name"`
	Username     string         `db:"username"`
	Email        string         `db:"email"`
	Phone        string         `db:"phone"`
	IsActive     bool           `db:"is_active"`
	Roles        pq.StringArray `db:"roles"`
	PasswordHash []byte         `db:"password_hash"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
	LastLogin    sql.NullTime   `db:"last_login"`
}

func (r userRow) toUser() user.User {
	usr := user.User{
		ID:           r.ID,
		Name:         r.Name,
		Username:     r.Username,
		Email:        r.Email,
		Phone:        r.Phone,
		IsActive:     r.IsActive,
		Roles:        r.Roles,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	if r.LastLogin.Valid {
		usr.LastLogin = r.LastLogin.Time
	}
	return usr
}

func newUserRow(usr user.User) userRow {
	return userRow{
		ID:           usr.ID,
		Name:         usr.Name,
		Username:     usr.Username,
		Email:        usr.Email,
		Phone:        usr.Phone,
		IsActive:     usr.IsActive,
		Roles:        usr.Roles,
		PasswordHash: usr.PasswordHash,
		CreatedAt:    usr.CreatedAt,
		UpdatedAt:    usr.UpdatedAt,
		LastLogin:    sql.NullTime{Time: usr.LastLogin, Valid: !usr.LastLogin.IsZero()},
	}
}

const userCols = `id, name, username, email, phone, is_active, roles, password_hash, created_at, updated_at, last_login`

// trapNoRowsErr maps psql "no rows" err to user.ErrNotFound
func trapUserNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return user.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...user.User) error {
	exclIDs := make([]string, 0, len(excludedUsers))
	for _, usr := range excludedUsers {
		exclIDs = append(exclIDs, usr.ID)
	}

	check := func(col, val string) (bool, error) {
		if val == "" {
			return false, nil
		}
		var exists bool
		err := repo.db.GetContext(ctx, &exists,
			`SELECT true FROM "user" WHERE `+col+` = $1 AND NOT (id = ANY($2)) LIMIT 1`,
			val, pq.StringArray(exclIDs))
		if err != nil && err != sql.ErrNoRows {
			return false, errors.Wrap(err, "checking user uniqueness")
		}
		return exists, nil
	}

	if exists, err := check("username", username); err != nil {
		return err
	} else if exists {
		return user.ErrUsernameExists
	}
	if exists, err := check("email", email); err != nil {
		return err
	} else if exists {
		return user.ErrEmailExists
	}
	return nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	usr.ID = uuid.New().String()
	row := newUserRow(usr)
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO "user" (`+userCols+`)
		VALUES (:id, :name, :username, :email, :phone, :is_active, :roles, :password_hash, :created_at, :updated_at, :last_login)`,
		row)
	if err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return row.toUser(), nil
}

func (repo userRepository) UpdateOrCreateUser(ctx context.Context, usr user.User) (user.User, error) {
	if usr.ID == "" {
		return repo.CreateUser(ctx, usr)
	}
	row := newUserRow(usr)
	_, err := repo.db.NamedExecContext(ctx, `
		UPDATE "user" SET
			name = :name, username = :username, email = :email, phone = :phone,
			is_active = :is_active, roles = :roles, password_hash = :password_hash,
			updated_at = :updated_at
		WHERE id = :id`, row)
	if err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	}
	return row.toUser(), nil
}

func (repo userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	q := `SELECT ` + userCols + ` FROM "user" WHERE 1=1`
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return "?"
	}

	switch {
	case filter.ID != "":
		q += ` AND id = ` + arg(filter.ID)
	case len(filter.UsernameOrEmail) == 2:
		q += ` AND (username = ` + arg(filter.UsernameOrEmail[0]) + ` OR email = ` + arg(filter.UsernameOrEmail[1]) + `)`
	case filter.Username != "":
		q += ` AND username = ` + arg(filter.Username)
	case filter.Email != "":
		q += ` AND email = ` + arg(filter.Email)
	case filter.Phone != "":
		q += ` AND phone = ` + arg(filter.Phone)
	default:
		return user.User{}, user.ErrNotFound
	}
	q = repo.db.Rebind(q)

	var row userRow
	if err := repo.db.GetContext(ctx, &row, q, args...); err != nil {
		return user.User{}, trapUserNoRowsErr(err, "getting user")
	}
	return row.toUser(), nil
}

func (repo userRepository) FilterUsers(ctx context.Context, filter user.QueryFilter) ([]user.User, error) {
	q := `SELECT ` + userCols + ` FROM "user" WHERE 1=1`
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return "?"
	}

	if filter.Search != "" {
		val := "%" + filter.Search + "%"
		q += ` AND (name ILIKE ` + arg(val) + ` OR username ILIKE ` + arg(val) + ` OR email ILIKE ` + arg(val) + `)`
	}
	if len(filter.Roles) > 0 {
		// users with any role that starts with any of the provided roles
		q += ` AND id IN (SELECT id FROM "user", UNNEST(roles) user_role WHERE `
		for i, role := range filter.Roles {
			if i > 0 {
				q += ` OR `
			}
			q += `user_role ILIKE ` + arg(role+"%")
		}
		q += `)`
	}
	if filter.IsActive != nil {
		q += ` AND is_active = ` + arg(*filter.IsActive)
	}
	if !filter.CreatedFrom.IsZero() {
		q += ` AND created_at >= ` + arg(filter.CreatedFrom.UTC())
	}
	if !filter.CreatedTo.IsZero() {
		q += ` AND created_at <= ` + arg(filter.CreatedTo.UTC())
	}
	q += orderBy(filter.Orderings, userOrderCols, `created_at DESC`)
	q = repo.db.Rebind(q)

	var rows []userRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "filtering users")
	}
	users := make([]user.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, row.toUser())
	}
	return users, nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User, isActive *bool) (user.User, error) {
	q := `UPDATE "user" SET updated_at = ?`
	args := []interface{}{usr.UpdatedAt.UTC()}

	setIf := func(col, val string) {
		if val != "" {
			q += `, ` + col + ` = ?`
			args = append(args, val)
		}
	}
	setIf("name", usr.Name)
	setIf("username", usr.Username)
	setIf("email", usr.Email)
	setIf("phone", usr.Phone)
	if usr.Roles != nil {
		q += `, roles = ?`
		args = append(args, pq.StringArray(usr.Roles))
	}
	if usr.PasswordHash != nil {
		q += `, password_hash = ?`
		args = append(args, usr.PasswordHash)
	}
	if isActive != nil {
		q += `, is_active = ?`
		args = append(args, *isActive)
	}
	q += ` WHERE id = ? RETURNING ` + userCols
	args = append(args, usr.ID)
	q = repo.db.Rebind(q)

	var row userRow
	if err := repo.db.GetContext(ctx, &row, q, args...); err != nil {
		return user.User{}, trapUserNoRowsErr(err, "updating user")
	}
	return row.toUser(), nil
}

func (repo userRepository) SetLastLogin(ctx context.Context, id string, t time.Time) error {
	_, err := repo.db.ExecContext(ctx,
		`UPDATE "user" SET last_login = $1 WHERE id = $2`, t.UTC(), id)
	return errors.Wrap(err, "setting last login")
}

func (repo userRepository) DeleteUsersByID(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := repo.db.ExecContext(ctx,
		`DELETE FROM "user" WHERE id = ANY($1)`, pq.StringArray(ids))
	return errors.Wrap(err, "deleting users")
}
