package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/library-service/cmd/api/book"
	"github.com/library-service/cmd/api/transaction"
	"github.com/library-service/cmd/api/user"
)

/* Appends a transaction record. The log is append-only: there is no
update or delete statement for the transactions table anywhere. */
func (store *Store) CreateTransaction(ctx context.Context, txEntry transaction.Transaction) (transaction.Transaction, error) {
	sqlStatement := `
	INSERT INTO transactions (id, transaction_type, timestamp, book_id, user_id)
	VALUES ($1, $2, $3, $4, $5)
	RETURNING id, transaction_type, timestamp, book_id, user_id`
	createdRow := store.exc.QueryRowContext(ctx, sqlStatement, txEntry.ID, string(txEntry.Type), txEntry.Timestamp, txEntry.BookID, txEntry.UserID)
	var txToReturn transaction.Transaction
	err := createdRow.Scan(&txToReturn.ID, &txToReturn.Type, &txToReturn.Timestamp, &txToReturn.BookID, &txToReturn.UserID)
	if err != nil {
		return transaction.Transaction{}, fmt.Errorf("storing transaction on db: %w", mapConflict(err))
	}

	return txToReturn, nil
}

const transactionColumns = `t.id, t.transaction_type, t.timestamp, t.book_id, t.user_id,
	b.id, b.title, b.author, b.isbn, b.total_quantity, b.available_quantity, b.created_at, b.updated_at,
	u.id, u.username, u.email, u.full_name, u.hashed_password, u.active, u.created_at`

/* Searches a transaction based on ID, with its book and user populated
when they still exist. */
func (store *Store) GetTransactionByID(ctx context.Context, id uuid.UUID) (transaction.Transaction, error) {
	sqlStatement := `SELECT ` + transactionColumns + `
	FROM transactions t
	LEFT JOIN books b ON b.id = t.book_id
	LEFT JOIN users u ON u.id = t.user_id
	WHERE t.id=$1;`
	foundRow := store.exc.QueryRowContext(ctx, sqlStatement, id)

	txToReturn, err := scanTransaction(foundRow.Scan)
	if err != nil {
		switch err {
		case sql.ErrNoRows:
			return transaction.Transaction{}, fmt.Errorf("searching by ID: %w", transaction.ErrResponseTransactionNotFound)
		default:
			return transaction.Transaction{}, fmt.Errorf("searching by ID: %w", err)
		}
	}

	return txToReturn, nil
}

/* Returns transactions newest first. The user and book filters are
exact-match and may be combined; uuid.Nil means no filter. */
func (store *Store) ListTransactions(ctx context.Context, skip, limit int, userID, bookID uuid.UUID) ([]transaction.Transaction, error) {
	sqlStatement := `SELECT ` + transactionColumns + `
	FROM transactions t
	LEFT JOIN books b ON b.id = t.book_id
	LEFT JOIN users u ON u.id = t.user_id
	WHERE ($3::uuid IS NULL OR t.user_id = $3)
	AND ($4::uuid IS NULL OR t.book_id = $4)
	ORDER BY t.timestamp DESC
	LIMIT $1 OFFSET $2;`

	rows, err := store.exc.QueryContext(ctx, sqlStatement, limit, skip, nullableID(userID), nullableID(bookID))
	if err != nil {
		return nil, fmt.Errorf("listing transactions from db: %w", err)
	}
	defer rows.Close()

	transactionslist := []transaction.Transaction{}
	for rows.Next() {
		txToReturn, err := scanTransaction(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("listing transactions from db: %w", err)
		}

		transactionslist = append(transactionslist, txToReturn)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("listing transactions from db: %w", err)
	}

	return transactionslist, nil
}

func nullableID(id uuid.UUID) uuid.NullUUID {
	return uuid.NullUUID{UUID: id, Valid: id != uuid.Nil}
}

/* Scans a transaction row joined with its (possibly deleted) book and user. */
func scanTransaction(scan func(dest ...any) error) (transaction.Transaction, error) {
	var txToReturn transaction.Transaction
	var bookRow struct {
		ID                uuid.NullUUID
		Title             sql.NullString
		Author            sql.NullString
		ISBN              sql.NullString
		TotalQuantity     sql.NullInt64
		AvailableQuantity sql.NullInt64
		CreatedAt         sql.NullTime
		UpdatedAt         sql.NullTime
	}
	var userRow struct {
		ID             uuid.NullUUID
		Username       sql.NullString
		Email          sql.NullString
		FullName       sql.NullString
		HashedPassword sql.NullString
		Active         sql.NullBool
		CreatedAt      sql.NullTime
	}

	err := scan(&txToReturn.ID, &txToReturn.Type, &txToReturn.Timestamp, &txToReturn.BookID, &txToReturn.UserID,
		&bookRow.ID, &bookRow.Title, &bookRow.Author, &bookRow.ISBN, &bookRow.TotalQuantity, &bookRow.AvailableQuantity, &bookRow.CreatedAt, &bookRow.UpdatedAt,
		&userRow.ID, &userRow.Username, &userRow.Email, &userRow.FullName, &userRow.HashedPassword, &userRow.Active, &userRow.CreatedAt)
	if err != nil {
		return transaction.Transaction{}, err
	}

	if bookRow.ID.Valid {
		total := int(bookRow.TotalQuantity.Int64)
		txToReturn.Book = &book.Book{
			ID:                bookRow.ID.UUID,
			Title:             bookRow.Title.String,
			Author:            bookRow.Author.String,
			ISBN:              bookRow.ISBN.String,
			TotalQuantity:     &total,
			AvailableQuantity: int(bookRow.AvailableQuantity.Int64),
			CreatedAt:         bookRow.CreatedAt.Time,
			UpdatedAt:         bookRow.UpdatedAt.Time,
		}
	}

	if userRow.ID.Valid {
		txToReturn.User = &user.User{
			ID:             userRow.ID.UUID,
			Username:       userRow.Username.String,
			Email:          userRow.Email.String,
			FullName:       userRow.FullName.String,
			HashedPassword: userRow.HashedPassword.String,
			Active:         userRow.Active.Bool,
			CreatedAt:      userRow.CreatedAt.Time,
		}
	}

	return txToReturn, nil
}
