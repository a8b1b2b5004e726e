package book

type ErrResponse struct {
	Code    int    `json:"error_code"`
	Message string `json:"error_message"`
}

func (e ErrResponse) Error() string {
	return e.Message
}

var ErrResponseBookEntryBlankFields = ErrResponse{100, "all the fields - title, author, isbn and total_quantity - must be filled correctly."}
var ErrResponseBookNotFound = ErrResponse{101, "book not found"}
var ErrResponseEntryInvalidJSON = ErrResponse{102, "invalid json request."}
var ErrResponseIdInvalidFormat = ErrResponse{103, "the endpoint is not a valid format ID. Must be /books/{uuid}"}
var ErrResponseQueryPageInvalid = ErrResponse{104, "query parameter 'skip' must be an int starting in 0. 'limit' must be an int between 1 and 100."}
var ErrResponseISBNConflict = ErrResponse{105, "there is already a book with this isbn on database."}
var ErrResponseQuantityInvalid = ErrResponse{106, "field total_quantity must be a positive int."}
var ErrResponseAvailabilityNegative = ErrResponse{107, "available quantity cannot be negative"}
var ErrResponseFromRepository = ErrResponse{108, "error from repository: "}
var ErrResponseRequestTimeout = ErrResponse{109, "context deadline exceeded"}
