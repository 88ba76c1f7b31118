package departamentos

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/Lelo88/inventario-api-golang/internal/httpx"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// ServiceAPI define lo que el handler necesita.
// Permite testear handlers con stubs sin tocar DB.
type ServiceAPI interface {
	List(ctx context.Context) ([]Departamento, error)
	Get(ctx context.Context, id string) (Departamento, error)
	GetByCodigo(ctx context.Context, codigo string) (Departamento, error)
	Create(ctx context.Context, input CreateDepartamentoInput) (Departamento, error)
	Update(ctx context.Context, id string, input UpdateDepartamentoInput) (Departamento, error)
	Delete(ctx context.Context, id string) (int, error)
}

// Handler HTTP para departamentos.
// Solo traduce HTTP <-> dominio (service).
type Handler struct {
	service ServiceAPI
}

// NewHandler crea un handler de departamentos.
func NewHandler(service ServiceAPI) *Handler {
	return &Handler{service: service}
}

// List maneja GET /departamentos.
func (handler *Handler) List(writer http.ResponseWriter, request *http.Request) {
	departamentos, err := handler.service.List(request.Context())
	if err != nil {
		httpx.Fail(writer, request, http.StatusInternalServerError, "internal_error", "unexpected error")
		return
	}

	httpx.OK(writer, request, http.StatusOK, departamentos)
}

// GetByID maneja GET /departamentos/{id}.
// Valida que el id sea UUID porque en DB es uuid; esto evita errores innecesarios.
func (handler *Handler) GetByID(writer http.ResponseWriter, request *http.Request) {
	id := chi.URLParam(request, "id")
	if _, err := uuid.Parse(id); err != nil {
		httpx.Fail(writer, request, http.StatusBadRequest, "invalid_id", "id must be a valid UUID")
		return
	}

	departamento, err := handler.service.Get(request.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, ErrorNotFound):
			httpx.Fail(writer, request, http.StatusNotFound, "not_found", "departamento not found")
		default:
			httpx.Fail(writer, request, http.StatusInternalServerError, "internal_error", "unexpected error")
		}
		return
	}

	httpx.OK(writer, request, http.StatusOK, departamento)
}

// GetByCodigo maneja GET /departamentos/codigo/{codigo}.
func (handler *Handler) GetByCodigo(writer http.ResponseWriter, request *http.Request) {
	codigo := chi.URLParam(request, "codigo")

	departamento, err := handler.service.GetByCodigo(request.Context(), codigo)
	if err != nil {
		switch {
		case errors.Is(err, ErrorInvalidInput):
			httpx.Fail(writer, request, http.StatusBadRequest, "invalid_input", "invalid codigo")
		case errors.Is(err, ErrorNotFound):
			httpx.Fail(writer, request, http.StatusNotFound, "not_found", "departamento not found")
		default:
			httpx.Fail(writer, request, http.StatusInternalServerError, "internal_error", "unexpected error")
		}
		return
	}

	httpx.OK(writer, request, http.StatusOK, departamento)
}

// Create maneja POST /departamentos.
func (handler *Handler) Create(writer http.ResponseWriter, request *http.Request) {
	var input CreateDepartamentoInput
	if err := json.NewDecoder(request.Body).Decode(&input); err != nil {
		httpx.Fail(writer, request, http.StatusBadRequest, "invalid_json", "invalid JSON body")
		return
	}

	departamento, err := handler.service.Create(request.Context(), input)
	if err != nil {
		switch {
		case errors.Is(err, ErrorInvalidInput):
			httpx.Fail(writer, request, http.StatusBadRequest, "invalid_input", `fields "codigo" and "nome" are required`)
		case errors.Is(err, ErrorDuplicateCodigo):
			httpx.Fail(writer, request, http.StatusConflict, "conflict", "departamento codigo already exists")
		default:
			// No filtramos detalles internos.
			httpx.Fail(writer, request, http.StatusInternalServerError, "internal_error", "unexpected error")
		}
		return
	}

	httpx.OK(writer, request, http.StatusCreated, departamento)
}

// Update maneja PUT /departamentos/{id} (parcial: campos ausentes se conservan).
func (handler *Handler) Update(writer http.ResponseWriter, request *http.Request) {
	id := chi.URLParam(request, "id")
	if _, err := uuid.Parse(id); err != nil {
		httpx.Fail(writer, request, http.StatusBadRequest, "invalid_id", "id must be a valid UUID")
		return
	}

	var input UpdateDepartamentoInput
	if err := json.NewDecoder(request.Body).Decode(&input); err != nil {
		httpx.Fail(writer, request, http.StatusBadRequest, "invalid_json", "invalid JSON body")
		return
	}

	departamento, err := handler.service.Update(request.Context(), id, input)
	if err != nil {
		switch {
		case errors.Is(err, ErrorInvalidInput):
			httpx.Fail(writer, request, http.StatusBadRequest, "invalid_input", "invalid input data")
		case errors.Is(err, ErrorNotFound):
			httpx.Fail(writer, request, http.StatusNotFound, "not_found", "departamento not found")
		case errors.Is(err, ErrorDuplicateCodigo):
			httpx.Fail(writer, request, http.StatusConflict, "conflict", "departamento codigo already exists")
		default:
			httpx.Fail(writer, request, http.StatusInternalServerError, "internal_error", "unexpected error")
		}
		return
	}

	httpx.OK(writer, request, http.StatusOK, departamento)
}

// Delete maneja DELETE /departamentos/{id}.
// Se rechaza con 400 mientras existan tombamentos vinculados.
func (handler *Handler) Delete(writer http.ResponseWriter, request *http.Request) {
	id := chi.URLParam(request, "id")
	if _, err := uuid.Parse(id); err != nil {
		httpx.Fail(writer, request, http.StatusBadRequest, "invalid_id", "id must be a valid UUID")
		return
	}

	linked, err := handler.service.Delete(request.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, ErrorHasTombamentos):
			httpx.Fail(writer, request, http.StatusBadRequest, "has_tombamentos",
				fmt.Sprintf("departamento has %d linked tombamentos", linked))
		case errors.Is(err, ErrorNotFound):
			httpx.Fail(writer, request, http.StatusNotFound, "not_found", "departamento not found")
		default:
			httpx.Fail(writer, request, http.StatusInternalServerError, "internal_error", "unexpected error")
		}
		return
	}

	// 204 No Content: respuesta vacía.
	writer.WriteHeader(http.StatusNoContent)
}
