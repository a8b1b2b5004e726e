package book

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/library-service/cmd/api/notifications"
)

type ServiceAPI interface {
	CreateBook(ctx context.Context, req CreateBookRequest) (Book, error)
	GetBook(ctx context.Context, id uuid.UUID) (Book, error)
	ListBooks(ctx context.Context, req ListBooksRequest) ([]Book, error)
	UpdateBook(ctx context.Context, req UpdateBookRequest) (Book, error)
	DeleteBook(ctx context.Context, id uuid.UUID) error
}

type Repository interface {
	CreateBook(ctx context.Context, bookEntry Book) (Book, error)
	GetBookByID(ctx context.Context, id uuid.UUID) (Book, error)
	ListBooks(ctx context.Context, title, author string, skip, limit int) ([]Book, error)
	UpdateBook(ctx context.Context, bookEntry Book) (Book, error)
	DeleteBook(ctx context.Context, id uuid.UUID) error
}

type Service struct {
	repo        Repository
	ntfy        *notifications.Ntfy
	ntfyTimeout time.Duration
}

func NewService(repo Repository, ntfy *notifications.Ntfy, notificationsTimeout time.Duration) *Service {
	return &Service{repo: repo, ntfy: ntfy, ntfyTimeout: notificationsTimeout}
}

/* Validates the entry, sets the server side fields and stores the book.
The available quantity of a new book always starts equal to its total quantity. */
func (s *Service) CreateBook(ctx context.Context, req CreateBookRequest) (Book, error) {
	err := filledFields(req)
	if err != nil {
		return Book{}, err
	}

	createdAt := time.Now().UTC().Round(time.Millisecond)

	newBook := Book{
		ID:                uuid.New(),
		Title:             req.Title,
		Author:            req.Author,
		ISBN:              req.ISBN,
		TotalQuantity:     req.TotalQuantity,
		AvailableQuantity: *req.TotalQuantity,
		CreatedAt:         createdAt,
		UpdatedAt:         createdAt,
	}

	storedBook, err := s.repo.CreateBook(ctx, newBook)
	if err != nil {
		return Book{}, err
	}

	go func() {
		ntfyCtx, cancel := context.WithTimeout(context.Background(), s.ntfyTimeout)
		defer cancel()
		err := s.ntfy.BookAdded(ntfyCtx, storedBook.Title, *storedBook.TotalQuantity)
		if err != nil {
			log.Println(err)
		}
	}()

	return storedBook, nil
}

func (s *Service) GetBook(ctx context.Context, id uuid.UUID) (Book, error) {
	return s.repo.GetBookByID(ctx, id)
}

func (s *Service) ListBooks(ctx context.Context, req ListBooksRequest) ([]Book, error) {
	books, err := s.repo.ListBooks(ctx, req.Title, req.Author, req.Skip, req.Limit)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("timeout on call to ListBooks: %w", err)
		}
		errRepo := ErrResponse{
			Code:    ErrResponseFromRepository.Code,
			Message: ErrResponseFromRepository.Message + err.Error(),
		}
		return nil, errRepo
	}

	return books, nil
}

/* Updates title and author of the asked book. Quantities are not mutable through this path. */
func (s *Service) UpdateBook(ctx context.Context, req UpdateBookRequest) (Book, error) {
	if req.Title == "" || req.Author == "" {
		return Book{}, ErrResponseBookEntryBlankFields
	}

	bookEntry := Book{
		ID:        req.ID,
		Title:     req.Title,
		Author:    req.Author,
		UpdatedAt: time.Now().UTC().Round(time.Millisecond),
	}

	return s.repo.UpdateBook(ctx, bookEntry)
}

func (s *Service) DeleteBook(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeleteBook(ctx, id)
}

/* Verifies if all entry fields are filled and valid. */
func filledFields(req CreateBookRequest) error {
	if req.Title == "" || req.Author == "" || req.ISBN == "" {
		return ErrResponseBookEntryBlankFields
	}
	if req.TotalQuantity == nil {
		return ErrResponseBookEntryBlankFields
	}
	if *req.TotalQuantity <= 0 {
		return ErrResponseQuantityInvalid
	}

	return nil
}
