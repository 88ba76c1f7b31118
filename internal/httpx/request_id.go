package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
)

// RequestIDFrom obtiene el request id para incluirlo en las respuestas.
// Prioriza el valor que dejó el middleware de chi en el contexto; si no hay,
// cae al header "X-Request-Id" (clientes que propagan su propio id).
func RequestIDFrom(request *http.Request) string {
	if request == nil {
		return ""
	}
	if id := middleware.GetReqID(request.Context()); id != "" {
		return id
	}
	return request.Header.Get("X-Request-Id")
}
