package database_test

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"os"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/google/uuid"
	"github.com/library-service/cmd/api/book"
	"github.com/library-service/cmd/api/database"
	"github.com/library-service/cmd/api/transaction"
	"github.com/library-service/cmd/api/user"
	"github.com/matryer/is"

	_ "github.com/golang-migrate/migrate/v4/source/file"

	_ "github.com/lib/pq"
)

var store *database.Store
var sqlDB *sql.DB
var ctx context.Context = context.Background()

// TestMain is called before all the tests run.
// Usually is where we add logic to initialise resources.
func TestMain(m *testing.M) {
	// Setting up the database for tests.
	// Without a DATABASE_URL these tests have nothing to run against.
	var err error
	connStr := os.Getenv("DATABASE_URL")
	if connStr == "" {
		log.Println("DATABASE_URL not set, skipping database tests")
		return
	}

	sqlDB, err = database.ConnectDb(connStr)
	if err != nil {
		log.Fatalln(err)
	}

	store = database.NewStore(sqlDB)
	path := os.Getenv("DATABASE_MIGRATIONS_PATH")
	err = database.MigrationUp(store, path)
	if err != nil {
		if !errors.Is(err, migrate.ErrNoChange) {
			log.Fatalln(err)
		}
		log.Println(err)
	}

	os.Exit(m.Run())
}

func TestCreateBook(t *testing.T) {
	// Removing all data from the test database.
	// We don't want to the database to be tainted with
	// this test data in another tests.
	t.Cleanup(func() {
		teardownDB(t)
	})

	t.Run("creates a book without errors", func(t *testing.T) {
		is := is.New(t)

		b := testBook("A new book")

		newBook, err := store.CreateBook(ctx, b)
		is.NoErr(err)
		compareBooks(is, newBook, b)
	})

	t.Run("rejects a duplicated isbn", func(t *testing.T) {
		is := is.New(t)

		b := testBook("First copy")
		_, err := store.CreateBook(ctx, b)
		is.NoErr(err)

		dup := testBook("Second copy")
		dup.ISBN = b.ISBN
		_, err = store.CreateBook(ctx, dup)
		is.True(errors.Is(err, book.ErrResponseISBNConflict))
	})
}

func TestGetBook(t *testing.T) {
	t.Cleanup(func() {
		teardownDB(t)
	})

	t.Run("fetches a book by ID without errors", func(t *testing.T) {
		is := is.New(t)

		b := testBook("A new book to be fetched")
		_, err := store.CreateBook(ctx, b)
		is.NoErr(err)

		fetched, err := store.GetBookByID(ctx, b.ID)
		is.NoErr(err)
		compareBooks(is, fetched, b)
	})

	t.Run("expected not found error", func(t *testing.T) {
		is := is.New(t)

		_, err := store.GetBookByID(ctx, uuid.New())
		is.True(errors.Is(err, book.ErrResponseBookNotFound))
	})
}

func TestUpdateBookAvailability(t *testing.T) {
	t.Cleanup(func() {
		teardownDB(t)
	})

	t.Run("applies a delta without errors", func(t *testing.T) {
		is := is.New(t)

		b := testBook("A book to be lent")
		_, err := store.CreateBook(ctx, b)
		is.NoErr(err)

		updated, err := store.UpdateBookAvailability(ctx, b.ID, -1)
		is.NoErr(err)
		is.Equal(updated.AvailableQuantity, 2)
	})

	t.Run("refuses to go below zero", func(t *testing.T) {
		is := is.New(t)

		b := testBook("An exhausted book")
		_, err := store.CreateBook(ctx, b)
		is.NoErr(err)

		for i := 0; i < 3; i++ {
			_, err = store.UpdateBookAvailability(ctx, b.ID, -1)
			is.NoErr(err)
		}

		_, err = store.UpdateBookAvailability(ctx, b.ID, -1)
		is.True(errors.Is(err, book.ErrResponseAvailabilityNegative))
	})

	t.Run("clamps at the total quantity", func(t *testing.T) {
		is := is.New(t)

		b := testBook("A fully stocked book")
		_, err := store.CreateBook(ctx, b)
		is.NoErr(err)

		updated, err := store.UpdateBookAvailability(ctx, b.ID, 1)
		is.NoErr(err)
		is.Equal(updated.AvailableQuantity, 3)
	})

	t.Run("expected not found error", func(t *testing.T) {
		is := is.New(t)

		_, err := store.UpdateBookAvailability(ctx, uuid.New(), -1)
		is.True(errors.Is(err, book.ErrResponseBookNotFound))
	})
}

func TestDeleteBook(t *testing.T) {
	t.Cleanup(func() {
		teardownDB(t)
	})

	t.Run("deletes a book keeping its transactions", func(t *testing.T) {
		is := is.New(t)

		b := testBook("A short lived book")
		_, err := store.CreateBook(ctx, b)
		is.NoErr(err)

		txEntry, err := store.CreateTransaction(ctx, transaction.Transaction{
			ID:        uuid.New(),
			Type:      transaction.TypeLend,
			Timestamp: time.Now().UTC().Round(time.Millisecond),
			BookID:    b.ID,
			UserID:    uuid.New(),
		})
		is.NoErr(err)

		is.NoErr(store.DeleteBook(ctx, b.ID))

		fetched, err := store.GetTransactionByID(ctx, txEntry.ID)
		is.NoErr(err)
		is.Equal(fetched.BookID, b.ID)
		is.Equal(fetched.Book, nil)
	})

	t.Run("expected not found error", func(t *testing.T) {
		is := is.New(t)

		err := store.DeleteBook(ctx, uuid.New())
		is.True(errors.Is(err, book.ErrResponseBookNotFound))
	})
}

func TestListTransactions(t *testing.T) {
	t.Cleanup(func() {
		teardownDB(t)
	})

	t.Run("lists newest first with filters and paging", func(t *testing.T) {
		is := is.New(t)

		b := testBook("A listed book")
		_, err := store.CreateBook(ctx, b)
		is.NoErr(err)

		u := testUser("lister")
		_, err = store.CreateUser(ctx, u)
		is.NoErr(err)

		base := time.Now().UTC().Round(time.Millisecond)
		for i := 0; i < 3; i++ {
			_, err = store.CreateTransaction(ctx, transaction.Transaction{
				ID:        uuid.New(),
				Type:      transaction.TypeLend,
				Timestamp: base.Add(time.Duration(i) * time.Second),
				BookID:    b.ID,
				UserID:    u.ID,
			})
			is.NoErr(err)
		}

		all, err := store.ListTransactions(ctx, 0, 10, uuid.Nil, uuid.Nil)
		is.NoErr(err)
		is.Equal(len(all), 3)
		is.Equal(all[0].Timestamp, base.Add(2*time.Second))
		is.True(all[0].Book != nil)
		is.True(all[0].User != nil)
		is.Equal(all[0].User.Username, u.Username)

		byUser, err := store.ListTransactions(ctx, 1, 1, u.ID, uuid.Nil)
		is.NoErr(err)
		is.Equal(len(byUser), 1)
		is.Equal(byUser[0].Timestamp, base.Add(time.Second))

		none, err := store.ListTransactions(ctx, 0, 10, uuid.New(), uuid.Nil)
		is.NoErr(err)
		is.Equal(len(none), 0)
	})
}

func TestUsers(t *testing.T) {
	t.Cleanup(func() {
		teardownDB(t)
	})

	t.Run("stores and fetches a user", func(t *testing.T) {
		is := is.New(t)

		u := testUser("stored")
		created, err := store.CreateUser(ctx, u)
		is.NoErr(err)
		is.Equal(created.ID, u.ID)

		byUsername, err := store.GetUserByUsername(ctx, u.Username)
		is.NoErr(err)
		is.Equal(byUsername.ID, u.ID)

		byID, err := store.GetUserByID(ctx, u.ID)
		is.NoErr(err)
		is.Equal(byID.Username, u.Username)
	})

	t.Run("rejects duplicated username and email", func(t *testing.T) {
		is := is.New(t)

		u := testUser("duplicated")
		_, err := store.CreateUser(ctx, u)
		is.NoErr(err)

		dup := testUser("other")
		dup.Username = u.Username
		_, err = store.CreateUser(ctx, dup)
		is.True(errors.Is(err, user.ErrResponseUsernameConflict))

		dup = testUser("another")
		dup.Email = u.Email
		_, err = store.CreateUser(ctx, dup)
		is.True(errors.Is(err, user.ErrResponseEmailConflict))
	})
}

func TestLendRoundTrip(t *testing.T) {
	t.Cleanup(func() {
		teardownDB(t)
	})

	t.Run("one transaction unit updates the ledger and the log", func(t *testing.T) {
		is := is.New(t)

		b := testBook("An atomic book")
		_, err := store.CreateBook(ctx, b)
		is.NoErr(err)

		txRepo, tx, err := store.BeginTx(ctx, nil)
		is.NoErr(err)

		locked, err := txRepo.GetBookForUpdate(ctx, b.ID)
		is.NoErr(err)
		is.Equal(locked.AvailableQuantity, 3)

		_, err = txRepo.UpdateBookAvailability(ctx, b.ID, -1)
		is.NoErr(err)

		_, err = txRepo.CreateTransaction(ctx, transaction.Transaction{
			ID:        uuid.New(),
			Type:      transaction.TypeLend,
			Timestamp: time.Now().UTC().Round(time.Millisecond),
			BookID:    b.ID,
			UserID:    uuid.New(),
		})
		is.NoErr(err)

		is.NoErr(tx.Commit())

		fetched, err := store.GetBookByID(ctx, b.ID)
		is.NoErr(err)
		is.Equal(fetched.AvailableQuantity, 2)
	})
}

func testBook(title string) book.Book {
	total := 3
	now := time.Now().UTC().Round(time.Millisecond)
	return book.Book{
		ID:                uuid.New(),
		Title:             title,
		Author:            "Test Author",
		ISBN:              uuid.NewString(),
		TotalQuantity:     &total,
		AvailableQuantity: total,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

func testUser(username string) user.User {
	return user.User{
		ID:             uuid.New(),
		Username:       username,
		Email:          username + "@example.com",
		FullName:       "Test User",
		HashedPassword: "not a real hash",
		Active:         true,
		CreatedAt:      time.Now().UTC().Round(time.Millisecond),
	}
}

func compareBooks(is *is.I, got, expected book.Book) {
	is.Equal(got.ID, expected.ID)
	is.Equal(got.Title, expected.Title)
	is.Equal(got.Author, expected.Author)
	is.Equal(got.ISBN, expected.ISBN)
	is.Equal(*got.TotalQuantity, *expected.TotalQuantity)
	is.Equal(got.AvailableQuantity, expected.AvailableQuantity)
}

func teardownDB(t *testing.T) {
	t.Helper()
	_, err := sqlDB.ExecContext(ctx, `TRUNCATE TABLE transactions, books, users`)
	if err != nil {
		t.Fatal(err)
	}
}
