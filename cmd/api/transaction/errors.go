package transaction

type ErrResponse struct {
	Code    int    `json:"error_code"`
	Message string `json:"error_message"`
}

func (e ErrResponse) Error() string {
	return e.Message
}

var ErrResponseTransactionNotFound = ErrResponse{200, "transaction not found"}
var ErrResponseBookNotAvailable = ErrResponse{201, "book is not available for lending"}
var ErrResponseEntryBlankFields = ErrResponse{202, "field book_id must be filled correctly."}
var ErrResponseTooManyConflicts = ErrResponse{203, "too many concurrent updates on this book, try again."}
var ErrResponseFromRepository = ErrResponse{204, "error from repository: "}
