package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/library-service/cmd/api/user"
)

/* Stores the user into the database, checks and returns it if succeed. */
func (store *Store) CreateUser(ctx context.Context, userEntry user.User) (user.User, error) {
	sqlStatement := `
	INSERT INTO users (id, username, email, full_name, hashed_password, active, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	RETURNING *`
	createdRow := store.exc.QueryRowContext(ctx, sqlStatement, userEntry.ID, userEntry.Username, userEntry.Email, userEntry.FullName, userEntry.HashedPassword, userEntry.Active, userEntry.CreatedAt)
	var userToReturn user.User
	err := scanUser(createdRow, &userToReturn)
	if err != nil {
		if uniqueViolation(err, "users_username_key") {
			return user.User{}, fmt.Errorf("storing user on db: %w", user.ErrResponseUsernameConflict)
		}
		if uniqueViolation(err, "users_email_key") {
			return user.User{}, fmt.Errorf("storing user on db: %w", user.ErrResponseEmailConflict)
		}
		return user.User{}, fmt.Errorf("storing user on db: %w", err)
	}

	return userToReturn, nil
}

func (store *Store) GetUserByUsername(ctx context.Context, username string) (user.User, error) {
	sqlStatement := `SELECT id, username, email, full_name, hashed_password, active, created_at
	FROM users
	WHERE username=$1;`
	foundRow := store.exc.QueryRowContext(ctx, sqlStatement, username)
	var userToReturn user.User
	err := scanUser(foundRow, &userToReturn)
	if err != nil {
		switch err {
		case sql.ErrNoRows:
			return user.User{}, fmt.Errorf("searching by username: %w", user.ErrResponseUserNotFound)
		default:
			return user.User{}, fmt.Errorf("searching by username: %w", err)
		}
	}

	return userToReturn, nil
}

func (store *Store) GetUserByID(ctx context.Context, id uuid.UUID) (user.User, error) {
	sqlStatement := `SELECT id, username, email, full_name, hashed_password, active, created_at
	FROM users
	WHERE id=$1;`
	foundRow := store.exc.QueryRowContext(ctx, sqlStatement, id)
	var userToReturn user.User
	err := scanUser(foundRow, &userToReturn)
	if err != nil {
		switch err {
		case sql.ErrNoRows:
			return user.User{}, fmt.Errorf("searching by ID: %w", user.ErrResponseUserNotFound)
		default:
			return user.User{}, fmt.Errorf("searching by ID: %w", err)
		}
	}

	return userToReturn, nil
}

func scanUser(row *sql.Row, u *user.User) error {
	return row.Scan(&u.ID, &u.Username, &u.Email, &u.FullName, &u.HashedPassword, &u.Active, &u.CreatedAt)
}
