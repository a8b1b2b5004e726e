package user

type ErrResponse struct {
	Code    int    `json:"error_code"`
	Message string `json:"error_message"`
}

func (e ErrResponse) Error() string {
	return e.Message
}

var ErrResponseUserEntryBlankFields = ErrResponse{300, "all the fields - username, email and password - must be filled correctly."}
var ErrResponseUserNotFound = ErrResponse{301, "user not found"}
var ErrResponseUsernameConflict = ErrResponse{302, "the user with this username already exists in the system."}
var ErrResponseEmailConflict = ErrResponse{303, "the user with this email already exists in the system."}
var ErrResponseInactiveUser = ErrResponse{304, "inactive user"}
