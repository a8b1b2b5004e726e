package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/library-service/cmd/api/book"
)

/* Stores the book into the database, checks and returns it if succeed. */
func (store *Store) CreateBook(ctx context.Context, bookEntry book.Book) (book.Book, error) {
	sqlStatement := `
	INSERT INTO books (id, title, author, isbn, total_quantity, available_quantity, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	RETURNING *`
	createdRow := store.exc.QueryRowContext(ctx, sqlStatement, bookEntry.ID, bookEntry.Title, bookEntry.Author, bookEntry.ISBN, *bookEntry.TotalQuantity, bookEntry.AvailableQuantity, bookEntry.CreatedAt, bookEntry.UpdatedAt)
	var bookToReturn book.Book
	err := scanBook(createdRow, &bookToReturn)
	if err != nil {
		if uniqueViolation(err, "books_isbn_key") {
			return book.Book{}, fmt.Errorf("storing book on db: %w", book.ErrResponseISBNConflict)
		}
		return book.Book{}, fmt.Errorf("storing book on db: %w", err)
	}

	return bookToReturn, nil
}

/* Searches a book in database based on ID and returns it if succeed. */
func (store *Store) GetBookByID(ctx context.Context, id uuid.UUID) (book.Book, error) {
	sqlStatement := `SELECT id, title, author, isbn, total_quantity, available_quantity, created_at, updated_at
	FROM books
	WHERE id=$1;`
	foundRow := store.exc.QueryRowContext(ctx, sqlStatement, id)
	var bookToReturn book.Book
	err := scanBook(foundRow, &bookToReturn)
	if err != nil {
		switch err {
		case sql.ErrNoRows:
			return book.Book{}, fmt.Errorf("searching by ID: %w", book.ErrResponseBookNotFound)
		default:
			return book.Book{}, fmt.Errorf("searching by ID: %w", err)
		}
	}

	return bookToReturn, nil
}

/* Same as GetBookByID, but locks the book row until the surrounding
transaction ends. Concurrent lends on the same book serialize here. */
func (store *Store) GetBookForUpdate(ctx context.Context, id uuid.UUID) (book.Book, error) {
	sqlStatement := `SELECT id, title, author, isbn, total_quantity, available_quantity, created_at, updated_at
	FROM books
	WHERE id=$1
	FOR UPDATE;`
	foundRow := store.exc.QueryRowContext(ctx, sqlStatement, id)
	var bookToReturn book.Book
	err := scanBook(foundRow, &bookToReturn)
	if err != nil {
		switch err {
		case sql.ErrNoRows:
			return book.Book{}, fmt.Errorf("locking book row: %w", book.ErrResponseBookNotFound)
		default:
			return book.Book{}, fmt.Errorf("locking book row: %w", mapConflict(err))
		}
	}

	return bookToReturn, nil
}

/* Applies a bounded delta to the available quantity of a book. The update
itself guards the lower bound and clamps the upper bound at total_quantity,
so an overshooting return is absorbed instead of rejected. */
func (store *Store) UpdateBookAvailability(ctx context.Context, id uuid.UUID, delta int) (book.Book, error) {
	sqlStatement := `
	UPDATE books
	SET available_quantity = LEAST(available_quantity + $2, total_quantity), updated_at = $3
	WHERE id = $1 AND available_quantity + $2 >= 0
	RETURNING *`
	updatedRow := store.exc.QueryRowContext(ctx, sqlStatement, id, delta, time.Now().UTC().Round(time.Millisecond))
	var bookToReturn book.Book
	err := scanBook(updatedRow, &bookToReturn)
	if err == nil {
		return bookToReturn, nil
	}
	if err != sql.ErrNoRows {
		return book.Book{}, fmt.Errorf("adjusting availability on db: %w", mapConflict(err))
	}

	// No row updated: either the book is gone or the delta would drive
	// the available quantity negative.
	_, err = store.GetBookByID(ctx, id)
	if err != nil {
		return book.Book{}, err
	}
	return book.Book{}, fmt.Errorf("adjusting availability on db: %w", book.ErrResponseAvailabilityNegative)
}

/* Returns filtered content of the books table. Title and author filters are
case-insensitive substring matches. */
func (store *Store) ListBooks(ctx context.Context, title, author string, skip, limit int) ([]book.Book, error) {
	sqlStatement := `SELECT id, title, author, isbn, total_quantity, available_quantity, created_at, updated_at
	FROM books
	WHERE title ILIKE $1
	AND author ILIKE $2
	ORDER BY created_at ASC
	LIMIT $3 OFFSET $4;`

	rows, err := store.exc.QueryContext(ctx, sqlStatement, substringPattern(title), substringPattern(author), limit, skip)
	if err != nil {
		return nil, fmt.Errorf("listing books from db: %w", err)
	}
	defer rows.Close()

	bookslist := []book.Book{}
	for rows.Next() {
		var bookToReturn book.Book
		err = rows.Scan(&bookToReturn.ID, &bookToReturn.Title, &bookToReturn.Author, &bookToReturn.ISBN, &bookToReturn.TotalQuantity, &bookToReturn.AvailableQuantity, &bookToReturn.CreatedAt, &bookToReturn.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("listing books from db: %w", err)
		}

		bookslist = append(bookslist, bookToReturn)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("listing books from db: %w", err)
	}

	return bookslist, nil
}

/* Updates title and author of a stored book. Quantities never change through this path. */
func (store *Store) UpdateBook(ctx context.Context, bookEntry book.Book) (book.Book, error) {
	sqlStatement := `
	UPDATE books
	SET title = $2, author = $3, updated_at = $4
	WHERE id = $1
	RETURNING *`
	updatedRow := store.exc.QueryRowContext(ctx, sqlStatement, bookEntry.ID, bookEntry.Title, bookEntry.Author, bookEntry.UpdatedAt)
	var bookToReturn book.Book
	err := scanBook(updatedRow, &bookToReturn)
	if err != nil {
		switch err {
		case sql.ErrNoRows:
			return book.Book{}, fmt.Errorf("updating on db: %w", book.ErrResponseBookNotFound)
		default:
			return book.Book{}, fmt.Errorf("updating on db: %w", err)
		}
	}

	return bookToReturn, nil
}

/* Removes the book row. Transactions referencing it are kept untouched. */
func (store *Store) DeleteBook(ctx context.Context, id uuid.UUID) error {
	sqlStatement := `
	DELETE FROM books
	WHERE id = $1;`
	result, err := store.exc.ExecContext(ctx, sqlStatement, id)
	if err != nil {
		return fmt.Errorf("deleting book from db: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting book from db: %w", err)
	}
	if deleted == 0 {
		return fmt.Errorf("deleting book from db: %w", book.ErrResponseBookNotFound)
	}

	return nil
}

func scanBook(row *sql.Row, b *book.Book) error {
	return row.Scan(&b.ID, &b.Title, &b.Author, &b.ISBN, &b.TotalQuantity, &b.AvailableQuantity, &b.CreatedAt, &b.UpdatedAt)
}

func substringPattern(filter string) string {
	if filter == "" {
		return "%"
	}
	return fmt.Sprint("%", filter, "%")
}
