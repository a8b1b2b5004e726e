package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/library-service/cmd/api/auth"
	"github.com/library-service/cmd/api/book"
	"github.com/library-service/cmd/api/user"
)

type TokenIssuer interface {
	CreateAccessToken(username string) (string, error)
}

type AuthHandler struct {
	userService    user.ServiceAPI
	issuer         TokenIssuer
	gate           *Gate
	requestTimeout time.Duration
}

func NewAuthHandler(userService user.ServiceAPI, issuer TokenIssuer, gate *Gate, requestTimeout time.Duration) *AuthHandler {
	return &AuthHandler{userService: userService, issuer: issuer, gate: gate, requestTimeout: requestTimeout}
}

type UserEntry struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Password string `json:"password"`
}

/* Addresses a call to "/auth/users": public user registration. */
func (h *AuthHandler) users(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()
	r = r.WithContext(ctx)

	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var userEntry UserEntry
	err := json.NewDecoder(r.Body).Decode(&userEntry)
	if err != nil {
		log.Println(err)
		errR := book.ErrResponse{
			Code:    book.ErrResponseEntryInvalidJSON.Code,
			Message: book.ErrResponseEntryInvalidJSON.Message + err.Error(),
		}
		responseJSON(w, http.StatusBadRequest, errR)
		return
	}

	createdUser, err := h.userService.CreateUser(r.Context(), user.CreateUserRequest{
		Username: userEntry.Username,
		Email:    userEntry.Email,
		FullName: userEntry.FullName,
		Password: userEntry.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, user.ErrResponseUserEntryBlankFields),
			errors.Is(err, user.ErrResponseUsernameConflict),
			errors.Is(err, user.ErrResponseEmailConflict):
			// the repository wraps its sentinels, unwrap before encoding
			var errR user.ErrResponse
			errors.As(err, &errR)
			responseJSON(w, http.StatusBadRequest, errR)
			return
		default:
			log.Println(err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
	}

	responseJSON(w, http.StatusCreated, userToResponse(createdUser))
}

/* Addresses a call to "/auth/login/token": the password login form,
answering with a bearer token on success. */
func (h *AuthHandler) loginToken(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()
	r = r.WithContext(ctx)

	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	err := r.ParseForm()
	if err != nil {
		log.Println(err)
		responseJSON(w, http.StatusBadRequest, auth.ErrResponseWrongUserOrPassword)
		return
	}

	username := r.PostForm.Get("username")
	password := r.PostForm.Get("password")

	usr, err := h.userService.GetUserByUsername(r.Context(), username)
	if err != nil {
		if errors.Is(err, user.ErrResponseUserNotFound) {
			unauthorized(w, auth.ErrResponseWrongUserOrPassword)
			return
		}
		log.Println(err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	if !user.CheckPassword(usr.HashedPassword, password) {
		unauthorized(w, auth.ErrResponseWrongUserOrPassword)
		return
	}

	if !usr.Active {
		responseJSON(w, http.StatusBadRequest, user.ErrResponseInactiveUser)
		return
	}

	token, err := h.issuer.CreateAccessToken(usr.Username)
	if err != nil {
		log.Println(err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	responseJSON(w, http.StatusOK, TokenResponse{AccessToken: token, TokenType: "bearer"})
}

/* Addresses a call to "/auth/users/me": returns the authenticated caller. */
func (h *AuthHandler) me(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()
	r = r.WithContext(ctx)

	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	usr, ok := h.gate.currentUser(w, r)
	if !ok {
		return
	}

	responseJSON(w, http.StatusOK, userToResponse(usr))
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type UserResponse struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	Email    string    `json:"email"`
	FullName string    `json:"full_name"`
	IsActive bool      `json:"is_active"`
}

/*Copy the fields of a user object to an http layer struct with json tags.
The credential hash never leaves the service. */
func userToResponse(u user.User) UserResponse {
	return UserResponse{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
		FullName: u.FullName,
		IsActive: u.Active,
	}
}
