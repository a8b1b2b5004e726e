package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const bcryptCost = 10

type ServiceAPI interface {
	CreateUser(ctx context.Context, req CreateUserRequest) (User, error)
	GetUserByUsername(ctx context.Context, username string) (User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (User, error)
}

type Repository interface {
	CreateUser(ctx context.Context, userEntry User) (User, error)
	GetUserByUsername(ctx context.Context, username string) (User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (User, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

/* Validates the entry, rejects duplicated usernames and emails,
hashes the password and stores the new user as active. */
func (s *Service) CreateUser(ctx context.Context, req CreateUserRequest) (User, error) {
	if req.Username == "" || req.Email == "" || req.Password == "" {
		return User{}, ErrResponseUserEntryBlankFields
	}

	_, err := s.repo.GetUserByUsername(ctx, req.Username)
	if err == nil {
		return User{}, ErrResponseUsernameConflict
	}
	if !errors.Is(err, ErrResponseUserNotFound) {
		return User{}, fmt.Errorf("checking username: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
	if err != nil {
		return User{}, fmt.Errorf("hashing password: %w", err)
	}

	newUser := User{
		ID:             uuid.New(),
		Username:       req.Username,
		Email:          req.Email,
		FullName:       req.FullName,
		HashedPassword: string(hash),
		Active:         true,
		CreatedAt:      time.Now().UTC().Round(time.Millisecond),
	}

	return s.repo.CreateUser(ctx, newUser)
}

func (s *Service) GetUserByUsername(ctx context.Context, username string) (User, error) {
	return s.repo.GetUserByUsername(ctx, username)
}

func (s *Service) GetUserByID(ctx context.Context, id uuid.UUID) (User, error) {
	return s.repo.GetUserByID(ctx, id)
}

/* Compares a plain password against the stored bcrypt hash. */
func CheckPassword(hashedPassword, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password)) == nil
}
