package tombamentos

import (
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"

	"github.com/Lelo88/inventario-api-golang/internal/fotos"
	"github.com/Lelo88/inventario-api-golang/internal/httpx"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// ServiceAPI define lo que el handler necesita del service.
type ServiceAPI interface {
	List(ctx context.Context, semDepartamento bool) ([]Tombamento, error)
	ListByDepartamento(ctx context.Context, departamentoID string) ([]Tombamento, error)
	Get(ctx context.Context, id string) (Tombamento, error)
	GetByCodigo(ctx context.Context, codigo string) (TombamentoComDepartamento, error)
	BuscarDepartamentos(ctx context.Context, codigos []string) ([]CodigoDepartamento, error)
	Create(ctx context.Context, input CreateTombamentoInput) (Tombamento, error)
	Update(ctx context.Context, id string, input UpdateTombamentoInput) (Tombamento, error)
	Delete(ctx context.Context, id string) (bool, error)
	DeleteAll(ctx context.Context) (int, int, error)
	DeleteByDepartamento(ctx context.Context, departamentoID string) (int, int, error)
	LinkToDepartamento(ctx context.Context, departamentoID, tombamentoID string) (Tombamento, error)
	UnlinkFromDepartamento(ctx context.Context, departamentoID, tombamentoID string) (Tombamento, error)
	AttachFoto(ctx context.Context, id, fotoURL string) (Tombamento, error)
	RemoveFoto(ctx context.Context, id string) (Tombamento, error)
	Reconcile(ctx context.Context, records []BatchRecord, options ReconcileOptions) ReconcileResult
	ReconcileForDepartamento(ctx context.Context, departamentoID string, records []BatchRecord, missingCodeAsIgnorado bool) (ReconcileResult, error)
}

// FotoSaver guarda el archivo subido y devuelve su URL pública.
type FotoSaver interface {
	Save(file multipart.File, header *multipart.FileHeader) (string, error)
	Delete(fotoURL string) error
}

// Handler HTTP para tombamentos. Solo traduce HTTP <-> dominio.
type Handler struct {
	service ServiceAPI
	fotos   FotoSaver
}

// NewHandler crea un handler de tombamentos.
func NewHandler(service ServiceAPI, storage FotoSaver) *Handler {
	return &Handler{service: service, fotos: storage}
}

// List maneja GET /tombamentos. Con ?sem_departamento=true devuelve
// solo los que no están vinculados a ningún departamento.
func (handler *Handler) List(writer http.ResponseWriter, request *http.Request) {
	semDepartamento := request.URL.Query().Get("sem_departamento") == "true"

	tombamentos, err := handler.service.List(request.Context(), semDepartamento)
	if err != nil {
		httpx.Fail(writer, request, http.StatusInternalServerError, "internal_error", "unexpected error")
		return
	}

	httpx.OK(writer, request, http.StatusOK, tombamentos)
}

// GetByID maneja GET /tombamentos/{id}.
func (handler *Handler) GetByID(writer http.ResponseWriter, request *http.Request) {
	id := chi.URLParam(request, "id")
	if _, err := uuid.Parse(id); err != nil {
		httpx.Fail(writer, request, http.StatusBadRequest, "invalid_id", "id must be a valid UUID")
		return
	}

	tombamento, err := handler.service.Get(request.Context(), id)
	if err != nil {
		handler.fail(writer, request, err)
		return
	}

	httpx.OK(writer, request, http.StatusOK, tombamento)
}

// GetByCodigo maneja GET /tombamentos/codigo/{codigo},
// con el departamento anidado cuando existe.
func (handler *Handler) GetByCodigo(writer http.ResponseWriter, request *http.Request) {
	codigo := chi.URLParam(request, "codigo")

	tombamento, err := handler.service.GetByCodigo(request.Context(), codigo)
	if err != nil {
		handler.fail(writer, request, err)
		return
	}

	httpx.OK(writer, request, http.StatusOK, tombamento)
}

// BuscarDepartamentos maneja POST /tombamentos/buscar-departamentos:
// resuelve el departamento de una lista de códigos en una sola consulta.
func (handler *Handler) BuscarDepartamentos(writer http.ResponseWriter, request *http.Request) {
	var input struct {
		Codigos []string `json:"codigos"`
	}
	if err := json.NewDecoder(request.Body).Decode(&input); err != nil {
		httpx.Fail(writer, request, http.StatusBadRequest, "invalid_json", "invalid JSON body")
		return
	}
	if len(input.Codigos) == 0 {
		httpx.Fail(writer, request, http.StatusBadRequest, "invalid_input", `field "codigos" must be a non-empty array`)
		return
	}

	resultados, err := handler.service.BuscarDepartamentos(request.Context(), input.Codigos)
	if err != nil {
		httpx.Fail(writer, request, http.StatusInternalServerError, "internal_error", "unexpected error")
		return
	}

	httpx.OK(writer, request, http.StatusOK, resultados)
}

// Create maneja POST /tombamentos.
func (handler *Handler) Create(writer http.ResponseWriter, request *http.Request) {
	var input CreateTombamentoInput
	if err := json.NewDecoder(request.Body).Decode(&input); err != nil {
		httpx.Fail(writer, request, http.StatusBadRequest, "invalid_json", "invalid JSON body")
		return
	}

	tombamento, err := handler.service.Create(request.Context(), input)
	if err != nil {
		handler.fail(writer, request, err)
		return
	}

	httpx.OK(writer, request, http.StatusCreated, tombamento)
}

// Batch maneja POST /tombamentos/batch: lote create-or-merge por código.
// Siempre responde 200 con el resumen; los registros fallidos viajan en detalhes.
func (handler *Handler) Batch(writer http.ResponseWriter, request *http.Request) {
	records, ok := decodeBatch(writer, request)
	if !ok {
		return
	}

	result := handler.service.Reconcile(request.Context(), records, ReconcileOptions{})
	httpx.OK(writer, request, http.StatusOK, result)
}

// Update maneja PUT /tombamentos/{id} (parcial).
func (handler *Handler) Update(writer http.ResponseWriter, request *http.Request) {
	id := chi.URLParam(request, "id")
	if _, err := uuid.Parse(id); err != nil {
		httpx.Fail(writer, request, http.StatusBadRequest, "invalid_id", "id must be a valid UUID")
		return
	}

	var input UpdateTombamentoInput
	if err := json.NewDecoder(request.Body).Decode(&input); err != nil {
		httpx.Fail(writer, request, http.StatusBadRequest, "invalid_json", "invalid JSON body")
		return
	}

	tombamento, err := handler.service.Update(request.Context(), id, input)
	if err != nil {
		handler.fail(writer, request, err)
		return
	}

	httpx.OK(writer, request, http.StatusOK, tombamento)
}

// Delete maneja DELETE /tombamentos/{id}. Borra también la foto en disco
// y reporta si había una que borrar.
func (handler *Handler) Delete(writer http.ResponseWriter, request *http.Request) {
	id := chi.URLParam(request, "id")
	if _, err := uuid.Parse(id); err != nil {
		httpx.Fail(writer, request, http.StatusBadRequest, "invalid_id", "id must be a valid UUID")
		return
	}

	fotoExcluida, err := handler.service.Delete(request.Context(), id)
	if err != nil {
		handler.fail(writer, request, err)
		return
	}

	httpx.OK(writer, request, http.StatusOK, map[string]bool{
		"foto_excluida": fotoExcluida,
	})
}

// DeleteAll maneja DELETE /tombamentos/all: vacía la tabla completa.
func (handler *Handler) DeleteAll(writer http.ResponseWriter, request *http.Request) {
	excluidos, fotosExcluidas, err := handler.service.DeleteAll(request.Context())
	if err != nil {
		httpx.Fail(writer, request, http.StatusInternalServerError, "internal_error", "unexpected error")
		return
	}

	httpx.OK(writer, request, http.StatusOK, map[string]int{
		"excluidos":       excluidos,
		"fotos_excluidas": fotosExcluidas,
	})
}

// UploadFoto maneja POST /tombamentos/{id}/foto (multipart, campo "foto").
// Si el tombamento no existe, el archivo recién guardado se revierte.
func (handler *Handler) UploadFoto(writer http.ResponseWriter, request *http.Request) {
	id := chi.URLParam(request, "id")
	if _, err := uuid.Parse(id); err != nil {
		httpx.Fail(writer, request, http.StatusBadRequest, "invalid_id", "id must be a valid UUID")
		return
	}

	if err := request.ParseMultipartForm(fotos.MaxFileSize); err != nil {
		httpx.Fail(writer, request, http.StatusBadRequest, "invalid_upload", "invalid multipart form")
		return
	}

	file, header, err := request.FormFile("foto")
	if err != nil {
		httpx.Fail(writer, request, http.StatusBadRequest, "invalid_upload", `file field "foto" is required`)
		return
	}
	defer file.Close()

	fotoURL, err := handler.fotos.Save(file, header)
	if err != nil {
		switch {
		case errors.Is(err, fotos.ErrorTooLarge):
			httpx.Fail(writer, request, http.StatusBadRequest, "file_too_large", "foto must be at most 5MB")
		case errors.Is(err, fotos.ErrorInvalidType):
			httpx.Fail(writer, request, http.StatusBadRequest, "invalid_file_type", "foto must be a jpeg, jpg, png, gif or webp image")
		default:
			httpx.Fail(writer, request, http.StatusInternalServerError, "internal_error", "unexpected error")
		}
		return
	}

	tombamento, err := handler.service.AttachFoto(request.Context(), id, fotoURL)
	if err != nil {
		// El archivo ya está en disco pero el registro no existe: rollback.
		_ = handler.fotos.Delete(fotoURL)
		handler.fail(writer, request, err)
		return
	}

	httpx.OK(writer, request, http.StatusOK, tombamento)
}

// DeleteFoto maneja DELETE /tombamentos/{id}/foto.
func (handler *Handler) DeleteFoto(writer http.ResponseWriter, request *http.Request) {
	id := chi.URLParam(request, "id")
	if _, err := uuid.Parse(id); err != nil {
		httpx.Fail(writer, request, http.StatusBadRequest, "invalid_id", "id must be a valid UUID")
		return
	}

	tombamento, err := handler.service.RemoveFoto(request.Context(), id)
	if err != nil {
		handler.fail(writer, request, err)
		return
	}

	httpx.OK(writer, request, http.StatusOK, tombamento)
}

// ListByDepartamento maneja GET /departamentos/{id}/tombamentos.
func (handler *Handler) ListByDepartamento(writer http.ResponseWriter, request *http.Request) {
	departamentoID, ok := departamentoIDParam(writer, request)
	if !ok {
		return
	}

	tombamentos, err := handler.service.ListByDepartamento(request.Context(), departamentoID)
	if err != nil {
		handler.fail(writer, request, err)
		return
	}

	httpx.OK(writer, request, http.StatusOK, tombamentos)
}

// ImportToDepartamento maneja POST /departamentos/{id}/tombamentos:
// lote create-or-merge donde todos los registros quedan en ese departamento.
func (handler *Handler) ImportToDepartamento(writer http.ResponseWriter, request *http.Request) {
	departamentoID, ok := departamentoIDParam(writer, request)
	if !ok {
		return
	}
	records, ok := decodeBatch(writer, request)
	if !ok {
		return
	}

	result, err := handler.service.ReconcileForDepartamento(request.Context(), departamentoID, records, false)
	if err != nil {
		handler.fail(writer, request, err)
		return
	}

	httpx.OK(writer, request, http.StatusOK, result)
}

// BatchToDepartamento maneja POST /departamentos/{id}/tombamentos/batch.
// Igual que ImportToDepartamento pero las filas sin código se ignoran
// en vez de contarse como errores.
func (handler *Handler) BatchToDepartamento(writer http.ResponseWriter, request *http.Request) {
	departamentoID, ok := departamentoIDParam(writer, request)
	if !ok {
		return
	}
	records, ok := decodeBatch(writer, request)
	if !ok {
		return
	}

	result, err := handler.service.ReconcileForDepartamento(request.Context(), departamentoID, records, true)
	if err != nil {
		handler.fail(writer, request, err)
		return
	}

	httpx.OK(writer, request, http.StatusOK, result)
}

// DeleteByDepartamento maneja DELETE /departamentos/{id}/tombamentos.
func (handler *Handler) DeleteByDepartamento(writer http.ResponseWriter, request *http.Request) {
	departamentoID, ok := departamentoIDParam(writer, request)
	if !ok {
		return
	}

	excluidos, fotosExcluidas, err := handler.service.DeleteByDepartamento(request.Context(), departamentoID)
	if err != nil {
		handler.fail(writer, request, err)
		return
	}

	httpx.OK(writer, request, http.StatusOK, map[string]int{
		"excluidos":       excluidos,
		"fotos_excluidas": fotosExcluidas,
	})
}

// Link maneja POST /departamentos/{id}/tombamentos/{tombamentoId}.
func (handler *Handler) Link(writer http.ResponseWriter, request *http.Request) {
	departamentoID, ok := departamentoIDParam(writer, request)
	if !ok {
		return
	}
	tombamentoID := chi.URLParam(request, "tombamentoId")
	if _, err := uuid.Parse(tombamentoID); err != nil {
		httpx.Fail(writer, request, http.StatusBadRequest, "invalid_id", "tombamentoId must be a valid UUID")
		return
	}

	tombamento, err := handler.service.LinkToDepartamento(request.Context(), departamentoID, tombamentoID)
	if err != nil {
		handler.fail(writer, request, err)
		return
	}

	httpx.OK(writer, request, http.StatusOK, tombamento)
}

// Unlink maneja DELETE /departamentos/{id}/tombamentos/{tombamentoId}.
func (handler *Handler) Unlink(writer http.ResponseWriter, request *http.Request) {
	departamentoID, ok := departamentoIDParam(writer, request)
	if !ok {
		return
	}
	tombamentoID := chi.URLParam(request, "tombamentoId")
	if _, err := uuid.Parse(tombamentoID); err != nil {
		httpx.Fail(writer, request, http.StatusBadRequest, "invalid_id", "tombamentoId must be a valid UUID")
		return
	}

	tombamento, err := handler.service.UnlinkFromDepartamento(request.Context(), departamentoID, tombamentoID)
	if err != nil {
		handler.fail(writer, request, err)
		return
	}

	httpx.OK(writer, request, http.StatusOK, tombamento)
}

// fail traduce errores de dominio a respuestas HTTP.
func (handler *Handler) fail(writer http.ResponseWriter, request *http.Request, err error) {
	switch {
	case errors.Is(err, ErrorInvalidInput):
		httpx.Fail(writer, request, http.StatusBadRequest, "invalid_input", "invalid input data")
	case errors.Is(err, ErrorInvalidValor):
		httpx.Fail(writer, request, http.StatusBadRequest, "invalid_valor", `field "valor" has an invalid format`)
	case errors.Is(err, ErrorDuplicateCodigo):
		httpx.Fail(writer, request, http.StatusConflict, "conflict", "tombamento codigo already exists")
	case errors.Is(err, ErrorNotFound):
		httpx.Fail(writer, request, http.StatusNotFound, "not_found", "tombamento not found")
	case errors.Is(err, ErrorNotInDepartamento):
		httpx.Fail(writer, request, http.StatusNotFound, "not_found", "tombamento not found in departamento")
	case errors.Is(err, ErrorDepartamentoNotFound):
		httpx.Fail(writer, request, http.StatusNotFound, "not_found", "departamento not found")
	case errors.Is(err, ErrorNoFoto):
		httpx.Fail(writer, request, http.StatusBadRequest, "no_foto", "tombamento has no foto")
	default:
		httpx.Fail(writer, request, http.StatusInternalServerError, "internal_error", "unexpected error")
	}
}

// decodeBatch lee el cuerpo de los endpoints de lote: acepta tanto un array
// crudo como un objeto {"tombamentos": [...]}, que es como exportan las planillas.
func decodeBatch(writer http.ResponseWriter, request *http.Request) ([]BatchRecord, bool) {
	var body json.RawMessage
	if err := json.NewDecoder(request.Body).Decode(&body); err != nil {
		httpx.Fail(writer, request, http.StatusBadRequest, "invalid_json", "invalid JSON body")
		return nil, false
	}

	var records []BatchRecord
	if err := json.Unmarshal(body, &records); err != nil {
		var wrapper struct {
			Tombamentos []BatchRecord `json:"tombamentos"`
		}
		if err := json.Unmarshal(body, &wrapper); err != nil || wrapper.Tombamentos == nil {
			httpx.Fail(writer, request, http.StatusBadRequest, "invalid_input", "body must be an array of tombamentos")
			return nil, false
		}
		records = wrapper.Tombamentos
	}

	if len(records) == 0 {
		httpx.Fail(writer, request, http.StatusBadRequest, "invalid_input", "batch must contain at least one record")
		return nil, false
	}
	return records, true
}

func departamentoIDParam(writer http.ResponseWriter, request *http.Request) (string, bool) {
	id := chi.URLParam(request, "id")
	if _, err := uuid.Parse(id); err != nil {
		httpx.Fail(writer, request, http.StatusBadRequest, "invalid_id", "id must be a valid UUID")
		return "", false
	}
	return id, true
}
