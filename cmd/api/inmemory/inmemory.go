package inmemory

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-memdb"
	"github.com/library-service/cmd/api/book"
	"github.com/library-service/cmd/api/transaction"
	"github.com/library-service/cmd/api/user"
)

/* InMemoryStore implements the same repository contracts as the postgres
store on top of go-memdb. It backs local runs without a database and the
service level tests. go-memdb allows a single write transaction at a time,
which serializes concurrent lends the same way the row lock does. */
type InMemoryStore struct {
	db  *memdb.MemDB
	exc *memdb.Txn
}

func NewInMemoryStore() (*InMemoryStore, error) {
	schema := &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			"book": {
				Name: "book",
				Indexes: map[string]*memdb.IndexSchema{
					"id": {
						Name:    "id",
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "ID"},
					},
					"isbn": {
						Name:    "isbn",
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "ISBN"},
					},
				},
			},
			"transaction": {
				Name: "transaction",
				Indexes: map[string]*memdb.IndexSchema{
					"id": {
						Name:    "id",
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "ID"},
					},
					"book_id": {
						Name:    "book_id",
						Unique:  false,
						Indexer: &memdb.StringFieldIndex{Field: "BookID"},
					},
					"user_id": {
						Name:    "user_id",
						Unique:  false,
						Indexer: &memdb.StringFieldIndex{Field: "UserID"},
					},
				},
			},
			"user": {
				Name: "user",
				Indexes: map[string]*memdb.IndexSchema{
					"id": {
						Name:    "id",
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "ID"},
					},
					"username": {
						Name:    "username",
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "Username"},
					},
					"email": {
						Name:    "email",
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "Email"},
					},
				},
			},
		},
	}

	if err := schema.Validate(); err != nil {
		return nil, fmt.Errorf("validating in-memory schema: %w", err)
	}

	db, err := memdb.NewMemDB(schema)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize in-memory database: %w", err)
	}
	return &InMemoryStore{db: db, exc: nil}, nil
}

/* memdb indexes only string fields, so stored rows carry string IDs. */
type AdaptedBook struct {
	ID                string
	Title             string
	Author            string
	ISBN              string
	TotalQuantity     *int
	AvailableQuantity int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func adaptBookIdToString(bookEntry book.Book) AdaptedBook {
	return AdaptedBook{
		ID:                bookEntry.ID.String(),
		Title:             bookEntry.Title,
		Author:            bookEntry.Author,
		ISBN:              bookEntry.ISBN,
		TotalQuantity:     bookEntry.TotalQuantity,
		AvailableQuantity: bookEntry.AvailableQuantity,
		CreatedAt:         bookEntry.CreatedAt,
		UpdatedAt:         bookEntry.UpdatedAt,
	}
}

func adaptBookIdToUUID(adptBook AdaptedBook) book.Book {
	return book.Book{
		ID:                uuid.MustParse(adptBook.ID),
		Title:             adptBook.Title,
		Author:            adptBook.Author,
		ISBN:              adptBook.ISBN,
		TotalQuantity:     adptBook.TotalQuantity,
		AvailableQuantity: adptBook.AvailableQuantity,
		CreatedAt:         adptBook.CreatedAt,
		UpdatedAt:         adptBook.UpdatedAt,
	}
}

type AdaptedTransaction struct {
	ID        string
	Type      string
	Timestamp time.Time
	BookID    string
	UserID    string
}

func adaptTransactionIdToString(txEntry transaction.Transaction) AdaptedTransaction {
	return AdaptedTransaction{
		ID:        txEntry.ID.String(),
		Type:      string(txEntry.Type),
		Timestamp: txEntry.Timestamp,
		BookID:    txEntry.BookID.String(),
		UserID:    txEntry.UserID.String(),
	}
}

func adaptTransactionIdToUUID(adptTx AdaptedTransaction) transaction.Transaction {
	return transaction.Transaction{
		ID:        uuid.MustParse(adptTx.ID),
		Type:      transaction.Type(adptTx.Type),
		Timestamp: adptTx.Timestamp,
		BookID:    uuid.MustParse(adptTx.BookID),
		UserID:    uuid.MustParse(adptTx.UserID),
	}
}

type AdaptedUser struct {
	ID             string
	Username       string
	Email          string
	FullName       string
	HashedPassword string
	Active         bool
	CreatedAt      time.Time
}

func adaptUserIdToString(userEntry user.User) AdaptedUser {
	return AdaptedUser{
		ID:             userEntry.ID.String(),
		Username:       userEntry.Username,
		Email:          userEntry.Email,
		FullName:       userEntry.FullName,
		HashedPassword: userEntry.HashedPassword,
		Active:         userEntry.Active,
		CreatedAt:      userEntry.CreatedAt,
	}
}

func adaptUserIdToUUID(adptUser AdaptedUser) user.User {
	return user.User{
		ID:             uuid.MustParse(adptUser.ID),
		Username:       adptUser.Username,
		Email:          adptUser.Email,
		FullName:       adptUser.FullName,
		HashedPassword: adptUser.HashedPassword,
		Active:         adptUser.Active,
		CreatedAt:      adptUser.CreatedAt,
	}
}

/* Picks the transaction scoped executor when there is one, or opens a
fresh transaction for just this call. The fresh transaction stays local
to the call so the shared store can be used from many goroutines. */
func (store *InMemoryStore) txn(write bool) (*memdb.Txn, bool) {
	if store.exc != nil {
		return store.exc, false
	}
	return store.db.Txn(write), true
}

// -- Books --

func (store *InMemoryStore) CreateBook(ctx context.Context, bookEntry book.Book) (book.Book, error) {
	exc, local := store.txn(true)
	if local {
		defer exc.Abort()
	}

	raw, err := exc.First("book", "isbn", bookEntry.ISBN)
	if err != nil {
		return book.Book{}, fmt.Errorf("storing book on db: %w", err)
	}
	if raw != nil {
		return book.Book{}, fmt.Errorf("storing book on db: %w", book.ErrResponseISBNConflict)
	}

	if err := exc.Insert("book", adaptBookIdToString(bookEntry)); err != nil {
		return book.Book{}, fmt.Errorf("storing book on db: %w", err)
	}

	if local {
		exc.Commit()
	}
	return bookEntry, nil
}

func (store *InMemoryStore) GetBookByID(ctx context.Context, id uuid.UUID) (book.Book, error) {
	exc, local := store.txn(false)
	if local {
		defer exc.Abort()
	}

	raw, err := exc.First("book", "id", id.String())
	if err != nil {
		return book.Book{}, fmt.Errorf("searching by ID: %w", err)
	}
	if raw == nil {
		return book.Book{}, fmt.Errorf("searching by ID: %w", book.ErrResponseBookNotFound)
	}

	return adaptBookIdToUUID(raw.(AdaptedBook)), nil
}

/* The write transaction already owns the whole store, so locking the row
is just fetching it inside that transaction. */
func (store *InMemoryStore) GetBookForUpdate(ctx context.Context, id uuid.UUID) (book.Book, error) {
	return store.GetBookByID(ctx, id)
}

func (store *InMemoryStore) UpdateBookAvailability(ctx context.Context, id uuid.UUID, delta int) (book.Book, error) {
	exc, local := store.txn(true)
	if local {
		defer exc.Abort()
	}

	raw, err := exc.First("book", "id", id.String())
	if err != nil {
		return book.Book{}, fmt.Errorf("adjusting availability on db: %w", err)
	}
	if raw == nil {
		return book.Book{}, fmt.Errorf("adjusting availability on db: %w", book.ErrResponseBookNotFound)
	}

	updatedBook := raw.(AdaptedBook)
	newAvailable := updatedBook.AvailableQuantity + delta
	if newAvailable < 0 {
		return book.Book{}, fmt.Errorf("adjusting availability on db: %w", book.ErrResponseAvailabilityNegative)
	}
	if newAvailable > *updatedBook.TotalQuantity {
		newAvailable = *updatedBook.TotalQuantity
	}
	updatedBook.AvailableQuantity = newAvailable
	updatedBook.UpdatedAt = time.Now().UTC().Round(time.Millisecond)

	if err := exc.Insert("book", updatedBook); err != nil {
		return book.Book{}, fmt.Errorf("adjusting availability on db: %w", err)
	}

	if local {
		exc.Commit()
	}
	return adaptBookIdToUUID(updatedBook), nil
}

func (store *InMemoryStore) ListBooks(ctx context.Context, title, author string, skip, limit int) ([]book.Book, error) {
	exc, local := store.txn(false)
	if local {
		defer exc.Abort()
	}

	it, err := exc.Get("book", "id")
	if err != nil {
		return nil, fmt.Errorf("listing books from db: %w", err)
	}

	books := []book.Book{}
	for obj := it.Next(); obj != nil; obj = it.Next() {
		b := obj.(AdaptedBook)
		if title != "" && !strings.Contains(strings.ToLower(b.Title), strings.ToLower(title)) {
			continue
		}
		if author != "" && !strings.Contains(strings.ToLower(b.Author), strings.ToLower(author)) {
			continue
		}
		books = append(books, adaptBookIdToUUID(b))
	}

	sort.Slice(books, func(i, j int) bool {
		return books[i].CreatedAt.Before(books[j].CreatedAt)
	})

	return paginate(books, skip, limit), nil
}

func (store *InMemoryStore) UpdateBook(ctx context.Context, bookEntry book.Book) (book.Book, error) {
	exc, local := store.txn(true)
	if local {
		defer exc.Abort()
	}

	raw, err := exc.First("book", "id", bookEntry.ID.String())
	if err != nil {
		return book.Book{}, fmt.Errorf("updating book on db: %w", err)
	}
	if raw == nil {
		return book.Book{}, fmt.Errorf("updating book on db: %w", book.ErrResponseBookNotFound)
	}

	updatedBook := raw.(AdaptedBook)
	updatedBook.Title = bookEntry.Title
	updatedBook.Author = bookEntry.Author
	//ISBN and quantities will not change
	updatedBook.UpdatedAt = bookEntry.UpdatedAt

	if err := exc.Insert("book", updatedBook); err != nil {
		return book.Book{}, fmt.Errorf("updating book on db: %w", err)
	}

	if local {
		exc.Commit()
	}
	return adaptBookIdToUUID(updatedBook), nil
}

func (store *InMemoryStore) DeleteBook(ctx context.Context, id uuid.UUID) error {
	exc, local := store.txn(true)
	if local {
		defer exc.Abort()
	}

	count, err := exc.DeleteAll("book", "id", id.String())
	if err != nil {
		return fmt.Errorf("deleting book from db: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("deleting book from db: %w", book.ErrResponseBookNotFound)
	}

	if local {
		exc.Commit()
	}
	return nil
}

// -- Transactions --

func (store *InMemoryStore) CreateTransaction(ctx context.Context, txEntry transaction.Transaction) (transaction.Transaction, error) {
	exc, local := store.txn(true)
	if local {
		defer exc.Abort()
	}

	if err := exc.Insert("transaction", adaptTransactionIdToString(txEntry)); err != nil {
		return transaction.Transaction{}, fmt.Errorf("storing transaction on db: %w", err)
	}

	if local {
		exc.Commit()
	}

	txEntry.Book = nil
	txEntry.User = nil
	return txEntry, nil
}

func (store *InMemoryStore) GetTransactionByID(ctx context.Context, id uuid.UUID) (transaction.Transaction, error) {
	exc, local := store.txn(false)
	if local {
		defer exc.Abort()
	}

	raw, err := exc.First("transaction", "id", id.String())
	if err != nil {
		return transaction.Transaction{}, fmt.Errorf("searching by ID: %w", err)
	}
	if raw == nil {
		return transaction.Transaction{}, fmt.Errorf("searching by ID: %w", transaction.ErrResponseTransactionNotFound)
	}

	txToReturn := adaptTransactionIdToUUID(raw.(AdaptedTransaction))
	store.populateRefs(exc, &txToReturn)
	return txToReturn, nil
}

func (store *InMemoryStore) ListTransactions(ctx context.Context, skip, limit int, userID, bookID uuid.UUID) ([]transaction.Transaction, error) {
	exc, local := store.txn(false)
	if local {
		defer exc.Abort()
	}

	it, err := exc.Get("transaction", "id")
	if err != nil {
		return nil, fmt.Errorf("listing transactions from db: %w", err)
	}

	transactions := []transaction.Transaction{}
	for obj := it.Next(); obj != nil; obj = it.Next() {
		t := obj.(AdaptedTransaction)
		if userID != uuid.Nil && t.UserID != userID.String() {
			continue
		}
		if bookID != uuid.Nil && t.BookID != bookID.String() {
			continue
		}

		txToReturn := adaptTransactionIdToUUID(t)
		store.populateRefs(exc, &txToReturn)
		transactions = append(transactions, txToReturn)
	}

	sort.Slice(transactions, func(i, j int) bool {
		return transactions[i].Timestamp.After(transactions[j].Timestamp)
	})

	return paginate(transactions, skip, limit), nil
}

/* Attaches the referenced book and user when they still exist. */
func (store *InMemoryStore) populateRefs(exc *memdb.Txn, txEntry *transaction.Transaction) {
	if raw, err := exc.First("book", "id", txEntry.BookID.String()); err == nil && raw != nil {
		b := adaptBookIdToUUID(raw.(AdaptedBook))
		txEntry.Book = &b
	}
	if raw, err := exc.First("user", "id", txEntry.UserID.String()); err == nil && raw != nil {
		u := adaptUserIdToUUID(raw.(AdaptedUser))
		txEntry.User = &u
	}
}

// -- Users --

func (store *InMemoryStore) CreateUser(ctx context.Context, userEntry user.User) (user.User, error) {
	exc, local := store.txn(true)
	if local {
		defer exc.Abort()
	}

	raw, err := exc.First("user", "username", userEntry.Username)
	if err != nil {
		return user.User{}, fmt.Errorf("storing user on db: %w", err)
	}
	if raw != nil {
		return user.User{}, fmt.Errorf("storing user on db: %w", user.ErrResponseUsernameConflict)
	}

	raw, err = exc.First("user", "email", userEntry.Email)
	if err != nil {
		return user.User{}, fmt.Errorf("storing user on db: %w", err)
	}
	if raw != nil {
		return user.User{}, fmt.Errorf("storing user on db: %w", user.ErrResponseEmailConflict)
	}

	if err := exc.Insert("user", adaptUserIdToString(userEntry)); err != nil {
		return user.User{}, fmt.Errorf("storing user on db: %w", err)
	}

	if local {
		exc.Commit()
	}
	return userEntry, nil
}

func (store *InMemoryStore) GetUserByUsername(ctx context.Context, username string) (user.User, error) {
	exc, local := store.txn(false)
	if local {
		defer exc.Abort()
	}

	raw, err := exc.First("user", "username", username)
	if err != nil {
		return user.User{}, fmt.Errorf("searching by username: %w", err)
	}
	if raw == nil {
		return user.User{}, fmt.Errorf("searching by username: %w", user.ErrResponseUserNotFound)
	}

	return adaptUserIdToUUID(raw.(AdaptedUser)), nil
}

func (store *InMemoryStore) GetUserByID(ctx context.Context, id uuid.UUID) (user.User, error) {
	exc, local := store.txn(false)
	if local {
		defer exc.Abort()
	}

	raw, err := exc.First("user", "id", id.String())
	if err != nil {
		return user.User{}, fmt.Errorf("searching by ID: %w", err)
	}
	if raw == nil {
		return user.User{}, fmt.Errorf("searching by ID: %w", user.ErrResponseUserNotFound)
	}

	return adaptUserIdToUUID(raw.(AdaptedUser)), nil
}

// -- Transactions boundary --

func (store *InMemoryStore) BeginTx(ctx context.Context, opts *sql.TxOptions) (transaction.Repository, driver.Tx, error) {
	txn := store.db.Txn(true)
	if txn == nil {
		return nil, nil, fmt.Errorf("failed to create transaction")
	}

	txWrapper := &TxWrapper{txn: txn}
	txStore := &InMemoryStore{
		db:  store.db,
		exc: txn,
	}

	return txStore, txWrapper, nil
}

type TxWrapper struct {
	txn  *memdb.Txn
	done bool
}

func (tx *TxWrapper) Commit() error {
	tx.txn.Commit()
	tx.done = true
	return nil
}

func (tx *TxWrapper) Rollback() error {
	if tx.done {
		return nil
	}
	tx.txn.Abort()
	tx.done = true
	return nil
}

func paginate[T any](items []T, skip, limit int) []T {
	if skip >= len(items) {
		return []T{}
	}
	end := skip + limit
	if limit <= 0 || end > len(items) {
		end = len(items)
	}
	return items[skip:end]
}
