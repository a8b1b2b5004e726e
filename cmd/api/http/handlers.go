package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/library-service/cmd/api/book"
)

type BookHandler struct {
	bookService    book.ServiceAPI
	gate           *Gate
	requestTimeout time.Duration
}

func NewBookHandler(bookService book.ServiceAPI, gate *Gate, requestTimeout time.Duration) *BookHandler {
	return &BookHandler{bookService: bookService, gate: gate, requestTimeout: requestTimeout}
}

/* Addresses a call to "/books/(expected id here)" according to the requested action.  */
func (h *BookHandler) bookById(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()
	r = r.WithContext(ctx)

	method := r.Method
	switch method {
	case http.MethodGet:
		h.getBookById(w, r)
		return
	case http.MethodPut:
		h.updateBook(w, r)
		return
	case http.MethodDelete:
		h.deleteBook(w, r)
		return
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
}

/* Addresses a call to "/books" according to the requested action.  */
func (h *BookHandler) books(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()
	r = r.WithContext(ctx)

	method := r.Method
	switch method {
	case http.MethodGet:
		h.listBooks(w, r)
		return
	case http.MethodPost:
		h.createBook(w, r)
		return
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
}

type BookEntry struct {
	Title         string `json:"title"`
	Author        string `json:"author"`
	ISBN          string `json:"isbn"`
	TotalQuantity *int   `json:"total_quantity"`
}

/* Authenticates the caller, validates the entry, then stores it as a new book. */
func (h *BookHandler) createBook(w http.ResponseWriter, r *http.Request) {
	_, ok := h.gate.currentUser(w, r)
	if !ok {
		return
	}

	var bookEntry BookEntry
	err := json.NewDecoder(r.Body).Decode(&bookEntry)
	if err != nil {
		log.Println(err)
		errR := book.ErrResponse{
			Code:    book.ErrResponseEntryInvalidJSON.Code,
			Message: book.ErrResponseEntryInvalidJSON.Message + err.Error(),
		}
		responseJSON(w, http.StatusBadRequest, errR)
		return
	}

	storedBook, err := h.bookService.CreateBook(r.Context(), bookToCreateReq(bookEntry))
	if err != nil {
		switch {
		case errors.Is(err, book.ErrResponseBookEntryBlankFields),
			errors.Is(err, book.ErrResponseQuantityInvalid),
			errors.Is(err, book.ErrResponseISBNConflict):
			// the repository wraps its sentinels, unwrap before encoding
			var errR book.ErrResponse
			errors.As(err, &errR)
			responseJSON(w, http.StatusBadRequest, errR)
			return
		default:
			log.Println(err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
	}

	responseJSON(w, http.StatusCreated, bookToResponse(storedBook))
}

/* Authenticates the caller, validates the entry, then updates the asked book. */
func (h *BookHandler) updateBook(w http.ResponseWriter, r *http.Request) {
	_, ok := h.gate.currentUser(w, r)
	if !ok {
		return
	}

	id, err := isolateId(w, r)
	if err != nil {
		return
	}

	var bookEntry BookEntry
	err = json.NewDecoder(r.Body).Decode(&bookEntry)
	if err != nil {
		log.Println(err)
		errR := book.ErrResponse{
			Code:    book.ErrResponseEntryInvalidJSON.Code,
			Message: book.ErrResponseEntryInvalidJSON.Message + err.Error(),
		}
		responseJSON(w, http.StatusBadRequest, errR)
		return
	}

	updatedBook, err := h.bookService.UpdateBook(r.Context(), book.UpdateBookRequest{
		ID:     id,
		Title:  bookEntry.Title,
		Author: bookEntry.Author,
	})
	if err != nil {
		switch {
		case errors.Is(err, book.ErrResponseBookNotFound):
			log.Println(err)
			w.WriteHeader(http.StatusNotFound)
			return
		case errors.Is(err, book.ErrResponseBookEntryBlankFields):
			responseJSON(w, http.StatusBadRequest, err)
			return
		default:
			log.Println(err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
	}

	responseJSON(w, http.StatusOK, bookToResponse(updatedBook))
}

/* Returns the book with that specific ID. */
func (h *BookHandler) getBookById(w http.ResponseWriter, r *http.Request) {
	id, err := isolateId(w, r)
	if err != nil {
		return
	}

	returnedBook, err := h.bookService.GetBook(r.Context(), id)
	if err != nil {
		if errors.Is(err, book.ErrResponseBookNotFound) {
			log.Println(err)
			w.WriteHeader(http.StatusNotFound)
			return
		}
		log.Println(err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	responseJSON(w, http.StatusOK, bookToResponse(returnedBook))
}

/* Authenticates the caller and removes the asked book from the catalog. */
func (h *BookHandler) deleteBook(w http.ResponseWriter, r *http.Request) {
	_, ok := h.gate.currentUser(w, r)
	if !ok {
		return
	}

	id, err := isolateId(w, r)
	if err != nil {
		return
	}

	err = h.bookService.DeleteBook(r.Context(), id)
	if err != nil {
		if errors.Is(err, book.ErrResponseBookNotFound) {
			log.Println(err)
			w.WriteHeader(http.StatusNotFound)
			return
		}
		log.Println(err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	responseJSON(w, http.StatusOK, MessageResponse{Message: fmt.Sprintf("Book with ID %s removed successfully", id)})
}

/* Returns a list of the stored books. */
func (h *BookHandler) listBooks(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	skip, limit, valid := extractPageParams(query)
	if !valid {
		responseJSON(w, http.StatusBadRequest, book.ErrResponseQueryPageInvalid)
		return
	}

	params := book.ListBooksRequest{
		Title:  query.Get("title"),
		Author: query.Get("author"),
		Skip:   skip,
		Limit:  limit,
	}

	books, err := h.bookService.ListBooks(r.Context(), params)
	if err != nil {
		log.Println(err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	results := []BookResponse{}
	for _, b := range books {
		results = append(results, bookToResponse(b))
	}
	responseJSON(w, http.StatusOK, results)
}

/* Converts from BookEntry type to CreateBookRequest type, with no json tags. */
func bookToCreateReq(b BookEntry) book.CreateBookRequest {
	return book.CreateBookRequest{
		Title:         b.Title,
		Author:        b.Author,
		ISBN:          b.ISBN,
		TotalQuantity: b.TotalQuantity,
	}
}

/* Isolates the ID from the URL. */
func isolateId(w http.ResponseWriter, r *http.Request) (id uuid.UUID, err error) {
	justId, _ := strings.CutPrefix(r.URL.Path, "/books/")
	id, err = uuid.Parse(justId)
	if err != nil {
		log.Println(err)
		responseJSON(w, http.StatusBadRequest, book.ErrResponseIdInvalidFormat)
		return id, err
	}
	return id, nil
}

type BookResponse struct {
	ID                uuid.UUID `json:"id"`
	Title             string    `json:"title"`
	Author            string    `json:"author"`
	ISBN              string    `json:"isbn"`
	TotalQuantity     *int      `json:"total_quantity"`
	AvailableQuantity int       `json:"available_quantity"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

/*Copy the fields of a book object to an http layer struct with json tags*/
func bookToResponse(b book.Book) BookResponse {
	return BookResponse{
		ID:                b.ID,
		Title:             b.Title,
		Author:            b.Author,
		ISBN:              b.ISBN,
		TotalQuantity:     b.TotalQuantity,
		AvailableQuantity: b.AvailableQuantity,
	}
}

/*Validates and prepares the pagination parameters of the query,
with skip defaulting to 0 and limit to 10, capped at 100.*/
func extractPageParams(query url.Values) (skip, limit int, valid bool) {
	var err error
	skipStr := query.Get("skip")
	if skipStr == "" {
		skip = 0
	} else {
		skip, err = strconv.Atoi(skipStr)
		if err != nil {
			return 0, 0, false
		}
		if skip < 0 {
			return 0, 0, false
		}
	}

	limitStr := query.Get("limit")
	if limitStr == "" {
		limit = 10
	} else {
		limit, err = strconv.Atoi(limitStr)
		if err != nil {
			return 0, 0, false
		}
		if !(0 < limit && limit <= 100) {
			return 0, 0, false
		}
	}

	return skip, limit, true
}
