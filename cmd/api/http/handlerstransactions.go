package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/library-service/cmd/api/book"
	"github.com/library-service/cmd/api/transaction"
)

type TransactionHandler struct {
	txService      transaction.ServiceAPI
	gate           *Gate
	requestTimeout time.Duration
}

func NewTransactionHandler(txService transaction.ServiceAPI, gate *Gate, requestTimeout time.Duration) *TransactionHandler {
	return &TransactionHandler{txService: txService, gate: gate, requestTimeout: requestTimeout}
}

type TransactionEntry struct {
	BookID uuid.UUID `json:"book_id"`
}

/* Addresses a call to "/transactions/give": lends a book to the caller. */
func (h *TransactionHandler) give(w http.ResponseWriter, r *http.Request) {
	h.lendingEndpoint(w, r, h.txService.LendBook)
}

/* Addresses a call to "/transactions/take": returns a book from the caller. */
func (h *TransactionHandler) take(w http.ResponseWriter, r *http.Request) {
	h.lendingEndpoint(w, r, h.txService.ReturnBook)
}

/* Shared checks of both lending endpoints: method, authentication and
entry validation, then the error mapping of the coordinator call. */
func (h *TransactionHandler) lendingEndpoint(w http.ResponseWriter, r *http.Request, operation func(ctx context.Context, bookID, userID uuid.UUID) (transaction.Transaction, error)) {
	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()
	r = r.WithContext(ctx)

	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	usr, ok := h.gate.currentUser(w, r)
	if !ok {
		return
	}

	var entry TransactionEntry
	err := json.NewDecoder(r.Body).Decode(&entry)
	if err != nil {
		log.Println(err)
		errR := book.ErrResponse{
			Code:    book.ErrResponseEntryInvalidJSON.Code,
			Message: book.ErrResponseEntryInvalidJSON.Message + err.Error(),
		}
		responseJSON(w, http.StatusBadRequest, errR)
		return
	}

	if entry.BookID == uuid.Nil {
		responseJSON(w, http.StatusBadRequest, transaction.ErrResponseEntryBlankFields)
		return
	}

	createdTxn, err := operation(r.Context(), entry.BookID, usr.ID)
	if err != nil {
		switch {
		case errors.Is(err, book.ErrResponseBookNotFound):
			log.Println(err)
			w.WriteHeader(http.StatusNotFound)
			return
		case errors.Is(err, transaction.ErrResponseBookNotAvailable):
			responseJSON(w, http.StatusBadRequest, transaction.ErrResponseBookNotAvailable)
			return
		case errors.Is(err, book.ErrResponseAvailabilityNegative):
			// arrives wrapped by the repository, answer the bare sentinel
			responseJSON(w, http.StatusBadRequest, book.ErrResponseAvailabilityNegative)
			return
		case errors.Is(err, transaction.ErrResponseTooManyConflicts):
			responseJSON(w, http.StatusConflict, transaction.ErrResponseTooManyConflicts)
			return
		default:
			log.Println(err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
	}

	responseJSON(w, http.StatusCreated, transactionToResponse(createdTxn))
}

/* Addresses a call to "/transactions": lists the lending log, newest first. */
func (h *TransactionHandler) transactions(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()
	r = r.WithContext(ctx)

	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	query := r.URL.Query()

	skip, limit, valid := extractPageParams(query)
	if !valid {
		responseJSON(w, http.StatusBadRequest, book.ErrResponseQueryPageInvalid)
		return
	}

	userID, valid := extractIDParam(query, "user_id")
	if !valid {
		responseJSON(w, http.StatusBadRequest, book.ErrResponseIdInvalidFormat)
		return
	}
	bookID, valid := extractIDParam(query, "book_id")
	if !valid {
		responseJSON(w, http.StatusBadRequest, book.ErrResponseIdInvalidFormat)
		return
	}

	params := transaction.ListTransactionsRequest{
		Skip:   skip,
		Limit:  limit,
		UserID: userID,
		BookID: bookID,
	}

	transactions, err := h.txService.ListTransactions(r.Context(), params)
	if err != nil {
		log.Println(err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	results := []TransactionResponse{}
	for _, t := range transactions {
		results = append(results, transactionToResponse(t))
	}
	responseJSON(w, http.StatusOK, results)
}

/* Parses an optional uuid query parameter. Absent means uuid.Nil (no filter). */
func extractIDParam(query map[string][]string, name string) (uuid.UUID, bool) {
	values, found := query[name]
	if !found || len(values) == 0 || values[0] == "" {
		return uuid.Nil, true
	}

	id, err := uuid.Parse(values[0])
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

type TransactionResponse struct {
	ID              uuid.UUID     `json:"id"`
	TransactionType string        `json:"transaction_type"`
	Timestamp       time.Time     `json:"timestamp"`
	BookID          uuid.UUID     `json:"book_id"`
	UserID          uuid.UUID     `json:"user_id"`
	Book            *BookResponse `json:"book"`
	User            *UserResponse `json:"user"`
}

/*Copy the fields of a transaction object to an http layer struct with json tags*/
func transactionToResponse(t transaction.Transaction) TransactionResponse {
	resp := TransactionResponse{
		ID:              t.ID,
		TransactionType: string(t.Type),
		Timestamp:       t.Timestamp,
		BookID:          t.BookID,
		UserID:          t.UserID,
	}

	if t.Book != nil {
		b := bookToResponse(*t.Book)
		resp.Book = &b
	}
	if t.User != nil {
		u := userToResponse(*t.User)
		resp.User = &u
	}

	return resp
}
