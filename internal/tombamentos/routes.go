package tombamentos

import "github.com/go-chi/chi/v5"

// RegisterRoutes registra las rutas de /tombamentos.
// Las rutas estáticas (/batch, /buscar-departamentos, /all) van antes
// que /{id} para que chi no las capture como parámetro.
func RegisterRoutes(route chi.Router, handler *Handler) {
	route.Route("/tombamentos", func(route chi.Router) {
		route.Get("/", handler.List)
		route.Post("/", handler.Create)
		route.Post("/batch", handler.Batch)
		route.Post("/buscar-departamentos", handler.BuscarDepartamentos)
		route.Delete("/all", handler.DeleteAll)
		route.Get("/codigo/{codigo}", handler.GetByCodigo)
		route.Get("/{id}", handler.GetByID)
		route.Put("/{id}", handler.Update)
		route.Delete("/{id}", handler.Delete)
		route.Post("/{id}/foto", handler.UploadFoto)
		route.Delete("/{id}/foto", handler.DeleteFoto)
	})
}
