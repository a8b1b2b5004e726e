package transaction

import (
	"time"

	"github.com/google/uuid"
	"github.com/library-service/cmd/api/book"
	"github.com/library-service/cmd/api/user"
)

type Type string

const (
	TypeLend   Type = "lend"
	TypeReturn Type = "return"
)

/* Transaction is an immutable record of a single lend or return event.
Once created it is never updated or deleted. */
type Transaction struct {
	ID        uuid.UUID
	Type      Type
	Timestamp time.Time
	BookID    uuid.UUID
	UserID    uuid.UUID
	Book      *book.Book
	User      *user.User
}

type ListTransactionsRequest struct {
	Skip   int
	Limit  int
	UserID uuid.UUID
	BookID uuid.UUID
}
