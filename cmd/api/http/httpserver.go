package http

import (
	"fmt"
	"net/http"
)

type ServerConfig struct {
	Port int
}

func NewServer(config ServerConfig, bh *BookHandler, th *TransactionHandler, ah *AuthHandler) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/ping", ping)
	mux.HandleFunc("/books", bh.books)
	mux.HandleFunc("/books/", bh.bookById)
	mux.HandleFunc("/transactions", th.transactions)
	mux.HandleFunc("/transactions/give", th.give)
	mux.HandleFunc("/transactions/take", th.take)
	mux.HandleFunc("/auth/users", ah.users)
	mux.HandleFunc("/auth/users/me", ah.me)
	mux.HandleFunc("/auth/login/token", ah.loginToken)

	server := http.Server{
		Addr:    fmt.Sprintf(":%d", config.Port),
		Handler: mux,
	}
	return &server
}

/* Tests the http server connection.  */
func ping(w http.ResponseWriter, r *http.Request) {
	method := r.Method
	if method == http.MethodGet {
		w.WriteHeader(http.StatusNoContent)
		return
	} else {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
}
