package sqlxrepos

import (
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/user"
)

var userColumns = []string{
	"id", "name", "username", "email", "role", "is_active",
	"password_hash", "created_at", "updated_at", "last_login",
}

type userRow struct {
	ID           int          `db:"id"`
	Name         string       `db:"name"`
	Username     string       `db:"username"`
	Email        string       `db:"email"`
	Role         string       `db:"role"`
	IsActive     bool         `db:"is_active"`
	PasswordHash []byte       `db:"password_hash"`
	CreatedAt    time.Time    `db:"created_at"`
	UpdatedAt    time.Time    `db:"updated_at"`
	LastLogin    sql.NullTime `db:"last_login"`
}

func (r userRow) toUser() user.User {
	usr := user.User{
		ID:           r.ID,
		Name:         r.Name,
		Username:     r.Username,
		Email:        r.Email,
		Role:         r.Role,
		IsActive:     r.IsActive,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	if r.LastLogin.Valid {
		usr.LastLogin = r.LastLogin.Time
	}
	return usr
}

func toUsers(rows []userRow) []user.User {
	usrs := make([]user.User, len(rows))
	for i, r := range rows {
		usrs[i] = r.toUser()
	}
	return usrs
}

type profileRow struct {
	ID               int         `db:"id"`
	UserID           int         `db:"user_id"`
	Bio              string      `db:"bio"`
	PictureRef       null.String `db:"picture_ref"`
	ThemePreference  string      `db:"theme_preference"`
	TwoFactorEnabled bool        `db:"two_factor_enabled"`
	TwoFactorSecret  null.String `db:"two_factor_secret"`
}

func (r profileRow) toProfile() user.Profile {
	return user.Profile{
		ID:               r.ID,
		UserID:           r.UserID,
		Bio:              r.Bio,
		PictureRef:       r.PictureRef,
		ThemePreference:  r.ThemePreference,
		TwoFactorEnabled: r.TwoFactorEnabled,
		TwoFactorSecret:  r.TwoFactorSecret,
	}
}

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db *sqlx.DB) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) CheckUsernameUniqueness(username, email string, excludedUsers ...user.User) error {
	qb := psql.Select("username", "email").
		From("users").
		Where(sq.Or{sq.Eq{"username": username}, sq.Eq{"email": email}})
	if len(excludedUsers) > 0 {
		ids := make([]int, len(excludedUsers))
		for i, usr := range excludedUsers {
			ids[i] = usr.ID
		}
		qb = qb.Where(sq.NotEq{"id": ids})
	}
	query, args, err := qb.ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}

	var rows []struct {
		Username string `db:"username"`
		Email    string `db:"email"`
	}
	if err = repo.db.Select(&rows, query, args...); err != nil {
		return errors.Wrap(err, "checking user uniqueness")
	}
	for _, r := range rows {
		if r.Username == username {
			return user.ErrUsernameExists
		}
		if r.Email == email {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo *userRepository) CreateUser(usr user.User) (user.User, error) {
	query, args, err := psql.Insert("users").
		Columns("name", "username", "email", "role", "is_active", "password_hash", "created_at", "updated_at").
		Values(usr.Name, usr.Username, usr.Email, usr.Role, usr.IsActive, usr.PasswordHash, usr.CreatedAt, usr.UpdatedAt).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return user.User{}, errors.Wrap(err, "building query")
	}
	if err = repo.db.Get(&usr.ID, query, args...); err != nil {
		return user.User{}, errors.Wrap(err, "creating user")
	}
	return usr, nil
}

func (repo *userRepository) QueryAllUsers() ([]user.User, error) {
	query, args, err := psql.Select(userColumns...).From("users").OrderBy("id").ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	var rows []userRow
	if err = repo.db.Select(&rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	return toUsers(rows), nil
}

func (repo *userRepository) getUser(pred interface{}) (user.User, error) {
	query, args, err := psql.Select(userColumns...).From("users").Where(pred).ToSql()
	if err != nil {
		return user.User{}, errors.Wrap(err, "building query")
	}
	var row userRow
	if err = repo.db.Get(&row, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "getting user")
	}
	return row.toUser(), nil
}

func (repo *userRepository) GetUserByID(id int) (user.User, error) {
	return repo.getUser(sq.Eq{"id": id})
}

func (repo *userRepository) GetUserByUsername(username string) (user.User, error) {
	return repo.getUser(sq.Eq{"username": username})
}

func (repo *userRepository) GetUserByEmail(email string) (user.User, error) {
	return repo.getUser(sq.Expr("LOWER(email) = LOWER(?)", email))
}

func (repo *userRepository) GetUserByUsernameOrEmail(username string) (user.User, error) {
	return repo.getUser(sq.Or{
		sq.Eq{"username": username},
		sq.Expr("LOWER(email) = LOWER(?)", username),
	})
}

func (repo *userRepository) FilterUsers(filter user.QueryFilter, ordering ...core.DBOrdering) ([]user.User, error) {
	qb := psql.Select(userColumns...).From("users")
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		qb = qb.Where(sq.Or{
			sq.ILike{"name": pattern},
			sq.ILike{"username": pattern},
			sq.ILike{"email": pattern},
		})
	}
	if filter.Role != "" {
		qb = qb.Where(sq.Eq{"role": filter.Role})
	}
	if filter.IsActive != nil {
		qb = qb.Where(sq.Eq{"is_active": *filter.IsActive})
	}
	if !filter.CreatedFrom.IsZero() {
		qb = qb.Where(sq.GtOrEq{"created_at": filter.CreatedFrom})
	}
	if !filter.CreatedTo.IsZero() {
		qb = qb.Where(sq.LtOrEq{"created_at": filter.CreatedTo})
	}
	if len(ordering) > 0 {
		for _, ord := range ordering {
			qb = qb.OrderBy(ord.String())
		}
	} else {
		qb = qb.OrderBy("id")
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	var rows []userRow
	if err = repo.db.Select(&rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "filtering users")
	}
	return toUsers(rows), nil
}

func (repo *userRepository) UpdateUser(usr user.User, isActive *bool) (user.User, error) {
	qb := psql.Update("users").
		Set("name", usr.Name).
		Set("username", usr.Username).
		Set("email", usr.Email).
		Set("password_hash", usr.PasswordHash).
		Set("updated_at", usr.UpdatedAt).
		Where(sq.Eq{"id": usr.ID})
	if isActive != nil {
		usr.IsActive = *isActive
		qb = qb.Set("is_active", *isActive)
	}
	query, args, err := qb.ToSql()
	if err != nil {
		return user.User{}, errors.Wrap(err, "building query")
	}
	if _, err = repo.db.Exec(query, args...); err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	}
	return usr, nil
}

func (repo *userRepository) UpdateLastLogin(id int, at time.Time) (user.User, error) {
	query, args, err := psql.Update("users").
		Set("last_login", at).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return user.User{}, errors.Wrap(err, "building query")
	}
	if _, err = repo.db.Exec(query, args...); err != nil {
		return user.User{}, errors.Wrap(err, "updating last login")
	}
	return repo.GetUserByID(id)
}

func (repo *userRepository) DeleteUsersByID(ids ...int) error {
	query, args, err := psql.Delete("users").Where(sq.Eq{"id": ids}).ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	if _, err = repo.db.Exec(query, args...); err != nil {
		return errors.Wrap(err, "deleting users")
	}
	return nil
}

func (repo *userRepository) GetProfileByUserID(userID int) (user.Profile, error) {
	query, args, err := psql.Select("id", "user_id", "bio", "picture_ref", "theme_preference", "two_factor_enabled", "two_factor_secret").
		From("user_profiles").
		Where(sq.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return user.Profile{}, errors.Wrap(err, "building query")
	}
	var row profileRow
	if err = repo.db.Get(&row, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return user.Profile{}, user.ErrProfileNotFound
		}
		return user.Profile{}, errors.Wrap(err, "getting profile")
	}
	return row.toProfile(), nil
}

func (repo *userRepository) CreateProfile(prof user.Profile) (user.Profile, error) {
	query, args, err := psql.Insert("user_profiles").
		Columns("user_id", "bio", "picture_ref", "theme_preference", "two_factor_enabled", "two_factor_secret").
		Values(prof.UserID, prof.Bio, prof.PictureRef, prof.ThemePreference, prof.TwoFactorEnabled, prof.TwoFactorSecret).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return user.Profile{}, errors.Wrap(err, "building query")
	}
	if err = repo.db.Get(&prof.ID, query, args...); err != nil {
		return user.Profile{}, errors.Wrap(err, "creating profile")
	}
	return prof, nil
}

func (repo *userRepository) UpdateProfile(prof user.Profile) (user.Profile, error) {
	query, args, err := psql.Update("user_profiles").
		Set("bio", prof.Bio).
		Set("picture_ref", prof.PictureRef).
		Set("theme_preference", prof.ThemePreference).
		Set("two_factor_enabled", prof.TwoFactorEnabled).
		Set("two_factor_secret", prof.TwoFactorSecret).
		Where(sq.Eq{"id": prof.ID}).
		ToSql()
	if err != nil {
		return user.Profile{}, errors.Wrap(err, "building query")
	}
	if _, err = repo.db.Exec(query, args...); err != nil {
		return user.Profile{}, errors.Wrap(err, "updating profile")
	}
	return prof, nil
}
