package transaction

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/library-service/cmd/api/book"
	"github.com/library-service/cmd/api/notifications"
	"github.com/library-service/cmd/api/user"
)

/* ErrTxConflict is returned by repositories when the storage backend aborts
the unit of work because of concurrent access to the same book row.
The service retries the whole unit a bounded number of times. */
var ErrTxConflict = errors.New("concurrent update conflict")

const txMaxRetries = 3

type ServiceAPI interface {
	LendBook(ctx context.Context, bookID, userID uuid.UUID) (Transaction, error)
	ReturnBook(ctx context.Context, bookID, userID uuid.UUID) (Transaction, error)
	GetTransaction(ctx context.Context, id uuid.UUID) (Transaction, error)
	ListTransactions(ctx context.Context, req ListTransactionsRequest) ([]Transaction, error)
}

type Repository interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (Repository, driver.Tx, error)
	GetBookForUpdate(ctx context.Context, bookID uuid.UUID) (book.Book, error)
	UpdateBookAvailability(ctx context.Context, bookID uuid.UUID, delta int) (book.Book, error)
	CreateTransaction(ctx context.Context, txEntry Transaction) (Transaction, error)
	GetTransactionByID(ctx context.Context, id uuid.UUID) (Transaction, error)
	ListTransactions(ctx context.Context, skip, limit int, userID, bookID uuid.UUID) ([]Transaction, error)
}

type UserRepository interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (user.User, error)
}

/* Service is the lending coordinator: the only entry point that changes a
book's availability and the sole producer of transaction records. Each lend
or return runs the availability update and the log append inside a single
storage transaction, with the book row locked for the read-modify-write. */
type Service struct {
	repo        Repository
	users       UserRepository
	ntfy        *notifications.Ntfy
	ntfyTimeout time.Duration
}

func NewService(repo Repository, users UserRepository, ntfy *notifications.Ntfy, notificationsTimeout time.Duration) *Service {
	return &Service{repo: repo, users: users, ntfy: ntfy, ntfyTimeout: notificationsTimeout}
}

/* Lends one copy of the book to the user: fails if the book is absent or
has no available copies, otherwise decrements availability by one and
appends a lend record, atomically. */
func (s *Service) LendBook(ctx context.Context, bookID, userID uuid.UUID) (Transaction, error) {
	createdTxn, err := s.runAtomically(ctx, func(txRepo Repository) (Transaction, error) {
		b, err := txRepo.GetBookForUpdate(ctx, bookID)
		if err != nil {
			return Transaction{}, err
		}
		if b.AvailableQuantity <= 0 {
			return Transaction{}, ErrResponseBookNotAvailable
		}

		updatedBook, err := txRepo.UpdateBookAvailability(ctx, bookID, -1)
		if err != nil {
			return Transaction{}, err
		}

		createdTxn, err := txRepo.CreateTransaction(ctx, newTransaction(TypeLend, bookID, userID))
		if err != nil {
			return Transaction{}, err
		}

		createdTxn.Book = &updatedBook
		return createdTxn, nil
	})
	if err != nil {
		return Transaction{}, err
	}

	if createdTxn.Book.AvailableQuantity == 0 {
		go func() {
			ntfyCtx, cancel := context.WithTimeout(context.Background(), s.ntfyTimeout)
			defer cancel()
			if err := s.ntfy.BookExhausted(ntfyCtx, createdTxn.Book.Title); err != nil {
				log.Println(err)
			}
		}()
	}

	return s.attachUser(ctx, createdTxn)
}

/* Returns one copy of the book: increments availability by one, capped at
the book's total quantity, and appends a return record, atomically.
Any authenticated user may return any book - returns are never blocked. */
func (s *Service) ReturnBook(ctx context.Context, bookID, userID uuid.UUID) (Transaction, error) {
	createdTxn, err := s.runAtomically(ctx, func(txRepo Repository) (Transaction, error) {
		_, err := txRepo.GetBookForUpdate(ctx, bookID)
		if err != nil {
			return Transaction{}, err
		}

		updatedBook, err := txRepo.UpdateBookAvailability(ctx, bookID, 1)
		if err != nil {
			return Transaction{}, err
		}

		createdTxn, err := txRepo.CreateTransaction(ctx, newTransaction(TypeReturn, bookID, userID))
		if err != nil {
			return Transaction{}, err
		}

		createdTxn.Book = &updatedBook
		return createdTxn, nil
	})
	if err != nil {
		return Transaction{}, err
	}

	return s.attachUser(ctx, createdTxn)
}

func (s *Service) GetTransaction(ctx context.Context, id uuid.UUID) (Transaction, error) {
	return s.repo.GetTransactionByID(ctx, id)
}

func (s *Service) ListTransactions(ctx context.Context, req ListTransactionsRequest) ([]Transaction, error) {
	transactions, err := s.repo.ListTransactions(ctx, req.Skip, req.Limit, req.UserID, req.BookID)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("timeout on call to ListTransactions: %w", err)
		}
		errRepo := ErrResponse{
			Code:    ErrResponseFromRepository.Code,
			Message: ErrResponseFromRepository.Message + err.Error(),
		}
		return nil, errRepo
	}

	return transactions, nil
}

/* Runs fn inside a storage transaction, retrying the whole unit when the
backend reports a concurrency conflict. */
func (s *Service) runAtomically(ctx context.Context, fn func(txRepo Repository) (Transaction, error)) (Transaction, error) {
	var lastErr error

	for attempt := 0; attempt < txMaxRetries; attempt++ {
		createdTxn, err := s.runOnce(ctx, fn)
		if errors.Is(err, ErrTxConflict) {
			lastErr = err
			continue
		}
		return createdTxn, err
	}

	log.Printf("giving up after %d attempts: %v", txMaxRetries, lastErr)
	return Transaction{}, ErrResponseTooManyConflicts
}

func (s *Service) runOnce(ctx context.Context, fn func(txRepo Repository) (Transaction, error)) (Transaction, error) {
	txRepo, tx, err := s.repo.BeginTx(ctx, nil)
	if err != nil {
		return Transaction{}, fmt.Errorf("beginning transaction: %w", err)
	}

	defer func() {
		rollbackErr := tx.Rollback()
		if rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
			log.Println(rollbackErr)
		}
	}()

	createdTxn, err := fn(txRepo)
	if err != nil {
		return Transaction{}, err
	}

	err = tx.Commit()
	if err != nil {
		return Transaction{}, fmt.Errorf("committing transaction: %w", err)
	}

	return createdTxn, nil
}

func (s *Service) attachUser(ctx context.Context, txEntry Transaction) (Transaction, error) {
	u, err := s.users.GetUserByID(ctx, txEntry.UserID)
	if err != nil {
		return Transaction{}, fmt.Errorf("fetching transaction user: %w", err)
	}

	txEntry.User = &u
	return txEntry, nil
}

func newTransaction(txType Type, bookID, userID uuid.UUID) Transaction {
	return Transaction{
		ID:        uuid.New(),
		Type:      txType,
		Timestamp: time.Now().UTC().Round(time.Millisecond),
		BookID:    bookID,
		UserID:    userID,
	}
}
