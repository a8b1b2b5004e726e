package book_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/library-service/cmd/api/book"
	bookmock "github.com/library-service/cmd/api/book/mocks"
	"github.com/library-service/cmd/api/notifications"
	"github.com/matryer/is"
	gomock "go.uber.org/mock/gomock"
)

var ctx context.Context = context.Background()

var ntfy *notifications.Ntfy
var notificationsTimeout = 1 * time.Second

func TestMain(m *testing.M) {
	ntfy = notifications.NewNtfy(false, "someURL", http.DefaultClient)

	os.Exit(m.Run())
}

func TestCreateBook(t *testing.T) {

	t.Run("creates a book without errors", func(t *testing.T) {
		is := is.New(t)
		ctrl := gomock.NewController(t)
		mockRepo := bookmock.NewMockRepository(ctrl)
		mS := book.NewService(mockRepo, ntfy, notificationsTimeout)

		reqBook := book.CreateBookRequest{
			Title:         "Service tester book",
			Author:        "Tester Author",
			ISBN:          "978-0-0000-0000-1",
			TotalQuantity: toPointer(3),
		}

		mockRepo.EXPECT().CreateBook(gomock.Any(), gomock.Any()).DoAndReturn(func(ctx context.Context, b book.Book) (book.Book, error) {
			is.True(b.ID != uuid.Nil)
			is.Equal(b.Title, reqBook.Title)
			is.Equal(b.Author, reqBook.Author)
			is.Equal(b.ISBN, reqBook.ISBN)
			is.Equal(*b.TotalQuantity, 3)
			is.Equal(b.AvailableQuantity, 3)
			is.True(b.CreatedAt.Compare(time.Now().Round(time.Millisecond)) <= 0)
			is.True(b.UpdatedAt.Compare(time.Now().Round(time.Millisecond)) <= 0)
			return b, nil
		})

		createdBook, err := mS.CreateBook(ctx, reqBook)
		is.NoErr(err)
		is.True(createdBook.ID != uuid.Nil)
		is.Equal(createdBook.Title, reqBook.Title)
		is.Equal(createdBook.AvailableQuantity, 3)
	})

	t.Run("rejects blank fields", func(t *testing.T) {
		is := is.New(t)
		ctrl := gomock.NewController(t)
		mockRepo := bookmock.NewMockRepository(ctrl)
		mS := book.NewService(mockRepo, ntfy, notificationsTimeout)

		reqBook := book.CreateBookRequest{
			Title:         "",
			Author:        "Tester Author",
			ISBN:          "978-0-0000-0000-1",
			TotalQuantity: toPointer(3),
		}

		_, err := mS.CreateBook(ctx, reqBook)
		is.True(errors.Is(err, book.ErrResponseBookEntryBlankFields))
	})

	t.Run("rejects missing and negative quantity", func(t *testing.T) {
		is := is.New(t)
		ctrl := gomock.NewController(t)
		mockRepo := bookmock.NewMockRepository(ctrl)
		mS := book.NewService(mockRepo, ntfy, notificationsTimeout)

		reqBook := book.CreateBookRequest{
			Title:  "Service tester book",
			Author: "Tester Author",
			ISBN:   "978-0-0000-0000-1",
		}

		_, err := mS.CreateBook(ctx, reqBook)
		is.True(errors.Is(err, book.ErrResponseBookEntryBlankFields))

		reqBook.TotalQuantity = toPointer(-1)
		_, err = mS.CreateBook(ctx, reqBook)
		is.True(errors.Is(err, book.ErrResponseQuantityInvalid))
	})
}

func TestUpdateBook(t *testing.T) {
	t.Run("updates a book without errors", func(t *testing.T) {
		is := is.New(t)
		ctrl := gomock.NewController(t)
		mockRepo := bookmock.NewMockRepository(ctrl)
		mS := book.NewService(mockRepo, ntfy, notificationsTimeout)

		reqBook := book.UpdateBookRequest{
			ID:     uuid.New(),
			Title:  "Updated service tester book",
			Author: "Updated Tester Author",
		}

		mockRepo.EXPECT().UpdateBook(gomock.Any(), gomock.Any()).DoAndReturn(func(ctx context.Context, b book.Book) (book.Book, error) {
			is.Equal(b.ID, reqBook.ID)
			is.Equal(b.Title, reqBook.Title)
			is.Equal(b.Author, reqBook.Author)
			is.True(b.UpdatedAt.Compare(time.Now().Round(time.Millisecond)) <= 0)
			return b, nil
		})

		updatedBook, err := mS.UpdateBook(ctx, reqBook)
		is.NoErr(err)
		is.Equal(updatedBook.ID, reqBook.ID)
		is.Equal(updatedBook.Title, reqBook.Title)
		is.Equal(updatedBook.Author, reqBook.Author)
	})

	t.Run("rejects blank fields", func(t *testing.T) {
		is := is.New(t)
		ctrl := gomock.NewController(t)
		mockRepo := bookmock.NewMockRepository(ctrl)
		mS := book.NewService(mockRepo, ntfy, notificationsTimeout)

		reqBook := book.UpdateBookRequest{
			ID:    uuid.New(),
			Title: "Updated service tester book",
		}

		_, err := mS.UpdateBook(ctx, reqBook)
		is.True(errors.Is(err, book.ErrResponseBookEntryBlankFields))
	})
}

func TestGetBook(t *testing.T) {
	t.Run("gets a book by ID without errors", func(t *testing.T) {
		is := is.New(t)
		ctrl := gomock.NewController(t)
		mockRepo := bookmock.NewMockRepository(ctrl)
		mS := book.NewService(mockRepo, ntfy, notificationsTimeout)

		id := uuid.New()

		mockRepo.EXPECT().GetBookByID(gomock.Any(), id)

		_, err := mS.GetBook(ctx, id)
		is.NoErr(err)
	})

	t.Run("propagates a not found error", func(t *testing.T) {
		is := is.New(t)
		ctrl := gomock.NewController(t)
		mockRepo := bookmock.NewMockRepository(ctrl)
		mS := book.NewService(mockRepo, ntfy, notificationsTimeout)

		id := uuid.New()

		mockRepo.EXPECT().GetBookByID(gomock.Any(), id).Return(book.Book{}, book.ErrResponseBookNotFound)

		_, err := mS.GetBook(ctx, id)
		is.True(errors.Is(err, book.ErrResponseBookNotFound))
	})
}

func TestDeleteBook(t *testing.T) {
	t.Run("deletes a book without errors", func(t *testing.T) {
		is := is.New(t)
		ctrl := gomock.NewController(t)
		mockRepo := bookmock.NewMockRepository(ctrl)
		mS := book.NewService(mockRepo, ntfy, notificationsTimeout)

		id := uuid.New()

		mockRepo.EXPECT().DeleteBook(gomock.Any(), id)

		err := mS.DeleteBook(ctx, id)
		is.NoErr(err)
	})
}

func TestListBooks(t *testing.T) {
	t.Run("lists books forwarding the filters", func(t *testing.T) {
		is := is.New(t)
		ctrl := gomock.NewController(t)
		mockRepo := bookmock.NewMockRepository(ctrl)
		mS := book.NewService(mockRepo, ntfy, notificationsTimeout)

		req := book.ListBooksRequest{
			Title:  "tester",
			Author: "author",
			Skip:   5,
			Limit:  20,
		}

		mockRepo.EXPECT().ListBooks(gomock.Any(), req.Title, req.Author, req.Skip, req.Limit).Return([]book.Book{}, nil)

		_, err := mS.ListBooks(ctx, req)
		is.NoErr(err)
	})

	t.Run("wraps unexpected repository errors", func(t *testing.T) {
		is := is.New(t)
		ctrl := gomock.NewController(t)
		mockRepo := bookmock.NewMockRepository(ctrl)
		mS := book.NewService(mockRepo, ntfy, notificationsTimeout)

		req := book.ListBooksRequest{Limit: 10}

		mockRepo.EXPECT().ListBooks(gomock.Any(), "", "", 0, 10).Return(nil, fmt.Errorf("fake repo error"))

		_, err := mS.ListBooks(ctx, req)
		var errResp book.ErrResponse
		is.True(errors.As(err, &errResp))
		is.Equal(errResp.Code, book.ErrResponseFromRepository.Code)
	})
}

func toPointer[T any](v T) *T {
	return &v
}
