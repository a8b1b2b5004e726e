package user

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID             uuid.UUID
	Username       string
	Email          string
	FullName       string
	HashedPassword string
	Active         bool
	CreatedAt      time.Time
}

type CreateUserRequest struct {
	Username string
	Email    string
	FullName string
	Password string
}
