package departamentos

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// TombamentoRoutes expone los handlers del paquete tombamentos que viven
// anidados bajo /departamentos/{id}. Definirlo acá evita acoplar los paquetes
// en la dirección equivocada.
type TombamentoRoutes interface {
	ListByDepartamento(http.ResponseWriter, *http.Request)
	ImportToDepartamento(http.ResponseWriter, *http.Request)
	BatchToDepartamento(http.ResponseWriter, *http.Request)
	DeleteByDepartamento(http.ResponseWriter, *http.Request)
	Link(http.ResponseWriter, *http.Request)
	Unlink(http.ResponseWriter, *http.Request)
}

// RegisterRoutes registra rutas de departamentos en el router,
// incluidas las anidadas de tombamentos por departamento.
// Mantener esto separado hace que main.go no crezca sin control.
func RegisterRoutes(route chi.Router, handler *Handler, tombamentos TombamentoRoutes) {
	route.Route("/departamentos", func(route chi.Router) {
		route.Get("/", handler.List)
		route.Post("/", handler.Create)
		route.Get("/codigo/{codigo}", handler.GetByCodigo)
		route.Get("/{id}", handler.GetByID)
		route.Put("/{id}", handler.Update)
		route.Delete("/{id}", handler.Delete)

		route.Get("/{id}/tombamentos", tombamentos.ListByDepartamento)
		route.Post("/{id}/tombamentos", tombamentos.ImportToDepartamento)
		route.Delete("/{id}/tombamentos", tombamentos.DeleteByDepartamento)
		// La ruta estática /batch tiene prioridad sobre /{tombamentoId}.
		route.Post("/{id}/tombamentos/batch", tombamentos.BatchToDepartamento)
		route.Post("/{id}/tombamentos/{tombamentoId}", tombamentos.Link)
		route.Delete("/{id}/tombamentos/{tombamentoId}", tombamentos.Unlink)
	})
}
