package handler

import (
	"net/http"

	"versioned-notes-server/pkg/response"
)

func Health(backend string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response.Success(w, map[string]string{
			"status":  "healthy",
			"backend": backend,
		})
	}
}
