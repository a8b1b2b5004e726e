package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/library-service/cmd/api/notifications"
	"github.com/matryer/is"
)

var ctx context.Context = context.Background()

func TestNotify(t *testing.T) {
	t.Run("publishes each event to its topic", func(t *testing.T) {
		is := is.New(t)

		var gotPath, gotBody string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			gotPath = r.URL.Path
			gotBody = string(body)
		}))
		defer server.Close()

		ntfy := notifications.NewNtfy(true, server.URL+"/", server.Client())

		is.NoErr(ntfy.BookAdded(ctx, "The Go Programming Language", 3))
		is.Equal(gotPath, "/_New_book_added")
		is.Equal(gotBody, "New book added: Title: The Go Programming Language Quantity: 3")

		is.NoErr(ntfy.BookExhausted(ctx, "The Go Programming Language"))
		is.Equal(gotPath, "/_Last_copy_lent")
		is.Equal(gotBody, "Last copy lent: Title: The Go Programming Language")
	})

	t.Run("reports a non 200 answer", func(t *testing.T) {
		is := is.New(t)

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		ntfy := notifications.NewNtfy(true, server.URL+"/", server.Client())

		err := ntfy.BookAdded(ctx, "A book", 1)
		var failed notifications.ErrNotificationFailed
		is.True(errors.As(err, &failed))
	})

	t.Run("does nothing when disabled", func(t *testing.T) {
		is := is.New(t)

		called := false
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
		}))
		defer server.Close()

		ntfy := notifications.NewNtfy(false, server.URL+"/", server.Client())

		is.NoErr(ntfy.BookAdded(ctx, "A book", 1))
		is.True(!called)
	})
}
