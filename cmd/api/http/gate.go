package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/library-service/cmd/api/auth"
	"github.com/library-service/cmd/api/user"
)

type TokenVerifier interface {
	VerifyAccessToken(tokenString string) (string, error)
}

type UserGetter interface {
	GetUserByUsername(ctx context.Context, username string) (user.User, error)
}

/* Gate authenticates requests on protected endpoints: it verifies the
bearer token and resolves it to an active user. */
type Gate struct {
	verifier TokenVerifier
	users    UserGetter
}

func NewGate(verifier TokenVerifier, users UserGetter) *Gate {
	return &Gate{verifier: verifier, users: users}
}

/* Resolves the caller from the Authorization header. On failure it writes
the error response and returns false, so handlers can just return. */
func (g *Gate) currentUser(w http.ResponseWriter, r *http.Request) (user.User, bool) {
	header := r.Header.Get("Authorization")
	tokenString, found := strings.CutPrefix(header, "Bearer ")
	if !found || tokenString == "" {
		unauthorized(w, auth.ErrResponseInvalidCredentials)
		return user.User{}, false
	}

	username, err := g.verifier.VerifyAccessToken(tokenString)
	if err != nil {
		log.Println(err)
		unauthorized(w, auth.ErrResponseInvalidCredentials)
		return user.User{}, false
	}

	usr, err := g.users.GetUserByUsername(r.Context(), username)
	if err != nil {
		if errors.Is(err, user.ErrResponseUserNotFound) {
			log.Println(err)
			unauthorized(w, auth.ErrResponseInvalidCredentials)
			return user.User{}, false
		}
		log.Println(err)
		w.WriteHeader(http.StatusInternalServerError)
		return user.User{}, false
	}

	if !usr.Active {
		responseJSON(w, http.StatusBadRequest, user.ErrResponseInactiveUser)
		return user.User{}, false
	}

	return usr, true
}

func unauthorized(w http.ResponseWriter, body any) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	responseJSON(w, http.StatusUnauthorized, body)
}

/*Writes a JSON response into a http.ResponseWriter. */
func responseJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(body)
	if err != nil {
		log.Println(err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
}
