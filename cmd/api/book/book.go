package book

import (
	"time"

	"github.com/google/uuid"
)

type Book struct {
	ID                uuid.UUID
	Title             string
	Author            string
	ISBN              string
	TotalQuantity     *int
	AvailableQuantity int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type CreateBookRequest struct {
	Title         string
	Author        string
	ISBN          string
	TotalQuantity *int
}

type UpdateBookRequest struct {
	ID     uuid.UUID
	Title  string
	Author string
}

type ListBooksRequest struct {
	Title  string
	Author string
	Skip   int
	Limit  int
}
