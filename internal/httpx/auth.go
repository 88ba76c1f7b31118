package httpx

import (
	"crypto/subtle"
	"net/http"
)

// BearerAuth protege rutas con un token compartido simple (estilo API key).
// Con token vacío el middleware no exige nada: la API queda abierta,
// igual que cuando API_TOKEN no está configurado.
func BearerAuth(token string) func(http.Handler) http.Handler {
	expected := []byte("Bearer " + token)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			header := []byte(r.Header.Get("Authorization"))
			// Comparación en tiempo constante para no filtrar el token por timing.
			if subtle.ConstantTimeCompare(header, expected) != 1 {
				Fail(w, r, http.StatusUnauthorized, "unauthorized", "invalid or missing token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
