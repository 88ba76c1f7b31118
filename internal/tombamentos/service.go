package tombamentos

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/Lelo88/inventario-api-golang/internal/money"
	"github.com/jackc/pgx/v5"
)

// Errores de dominio (no HTTP). El handler los traduce a status codes.
var (
	ErrorInvalidInput         = errors.New("invalid input")
	ErrorInvalidValor         = errors.New("invalid valor format")
	ErrorDuplicateCodigo      = errors.New("duplicate tombamento codigo")
	ErrorNotFound             = errors.New("tombamento not found")
	ErrorDepartamentoNotFound = errors.New("departamento not found")
	ErrorNoFoto               = errors.New("tombamento has no foto")
	ErrorNotInDepartamento    = errors.New("tombamento not found in departamento")
)

// RepositoryAPI define lo que el service necesita de la capa de datos.
type RepositoryAPI interface {
	List(ctx context.Context, semDepartamento bool) ([]Tombamento, error)
	ListByDepartamento(ctx context.Context, departamentoID string) ([]Tombamento, error)
	GetByID(ctx context.Context, id string) (Tombamento, error)
	GetByCodigo(ctx context.Context, codigo string) (TombamentoComDepartamento, error)
	FindIDByCodigo(ctx context.Context, codigo string) (string, error)
	BuscarDepartamentos(ctx context.Context, codigos []string) ([]CodigoDepartamento, error)
	Insert(ctx context.Context, codigo string, fields InsertFields) (Tombamento, error)
	MergeByCodigo(ctx context.Context, codigo string, fields InsertFields, setDepartamento bool) (Tombamento, error)
	Update(ctx context.Context, id string, input UpdateTombamentoInput, valor *float64) (Tombamento, error)
	SetDepartamento(ctx context.Context, id string, departamentoID *string) (Tombamento, error)
	UnlinkFromDepartamento(ctx context.Context, id, departamentoID string) (Tombamento, error)
	SetFoto(ctx context.Context, id string, foto *string) (Tombamento, error)
	Delete(ctx context.Context, id string) (Tombamento, error)
	DeleteAll(ctx context.Context) ([]Tombamento, error)
	DeleteByDepartamento(ctx context.Context, departamentoID string) ([]Tombamento, error)
}

// DepartamentoStore es lo mínimo que este paquete necesita saber de departamentos.
type DepartamentoStore interface {
	Exists(ctx context.Context, id string) (bool, error)
}

// FotoStorage abstrae el almacenamiento en disco de las fotos.
type FotoStorage interface {
	Delete(fotoURL string) error
}

// Service contiene reglas de negocio de tombamentos,
// incluido el motor de reconciliación de lotes (ver batch.go).
type Service struct {
	repository    RepositoryAPI
	departamentos DepartamentoStore
	storage       FotoStorage
	logger        *slog.Logger
}

// NewService crea un service de tombamentos.
func NewService(repository RepositoryAPI, departamentos DepartamentoStore, storage FotoStorage, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{
		repository:    repository,
		departamentos: departamentos,
		storage:       storage,
		logger:        logger,
	}
}

// List devuelve tombamentos, opcionalmente solo los sin departamento.
func (service *Service) List(ctx context.Context, semDepartamento bool) ([]Tombamento, error) {
	return service.repository.List(ctx, semDepartamento)
}

// ListByDepartamento devuelve los tombamentos de un departamento existente.
func (service *Service) ListByDepartamento(ctx context.Context, departamentoID string) ([]Tombamento, error) {
	if err := service.checkDepartamento(ctx, departamentoID); err != nil {
		return nil, err
	}
	return service.repository.ListByDepartamento(ctx, departamentoID)
}

// Get obtiene un tombamento por ID.
func (service *Service) Get(ctx context.Context, id string) (Tombamento, error) {
	tombamento, err := service.repository.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Tombamento{}, ErrorNotFound
		}
		return Tombamento{}, err
	}
	return tombamento, nil
}

// GetByCodigo obtiene un tombamento por código con el departamento expandido.
func (service *Service) GetByCodigo(ctx context.Context, codigo string) (TombamentoComDepartamento, error) {
	codigo = strings.TrimSpace(codigo)
	if codigo == "" {
		return TombamentoComDepartamento{}, ErrorInvalidInput
	}

	tombamento, err := service.repository.GetByCodigo(ctx, codigo)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return TombamentoComDepartamento{}, ErrorNotFound
		}
		return TombamentoComDepartamento{}, err
	}
	return tombamento, nil
}

// BuscarDepartamentos resuelve el departamento de varios códigos a la vez.
func (service *Service) BuscarDepartamentos(ctx context.Context, codigos []string) ([]CodigoDepartamento, error) {
	normalizados := make([]string, 0, len(codigos))
	for _, codigo := range codigos {
		if codigo = strings.TrimSpace(codigo); codigo != "" {
			normalizados = append(normalizados, codigo)
		}
	}
	if len(normalizados) == 0 {
		return []CodigoDepartamento{}, nil
	}

	return service.repository.BuscarDepartamentos(ctx, normalizados)
}

// Create valida reglas y crea el tombamento en DB.
func (service *Service) Create(ctx context.Context, input CreateTombamentoInput) (Tombamento, error) {
	input.Codigo = strings.TrimSpace(input.Codigo)
	input.Descricao = strings.TrimSpace(input.Descricao)

	// codigo y descricao son obligatorios en el alta directa.
	if input.Codigo == "" || input.Descricao == "" {
		return Tombamento{}, ErrorInvalidInput
	}

	valor, err := normalizeValor(input.Valor)
	if err != nil {
		return Tombamento{}, err
	}

	fields := InsertFields{
		Descricao:   input.Descricao,
		Localizacao: trimToNil(input.Localizacao),
		Oldcode:     input.Oldcode,
		Valor:       valor,
		Status:      input.Status,
		Foto:        input.Foto,
	}

	tombamento, err := service.repository.Insert(ctx, input.Codigo, fields)
	if err != nil {
		if errors.Is(err, ErrorDuplicateCodigo) {
			return Tombamento{}, ErrorDuplicateCodigo
		}
		return Tombamento{}, err
	}
	return tombamento, nil
}

// Update valida reglas y actualiza parcialmente un tombamento.
func (service *Service) Update(ctx context.Context, id string, input UpdateTombamentoInput) (Tombamento, error) {
	// Debe venir al menos un campo.
	if input.Codigo == nil && input.Descricao == nil && input.Localizacao == nil &&
		input.Oldcode == nil && input.Valor == nil && input.Status == nil && input.Foto == nil {
		return Tombamento{}, ErrorInvalidInput
	}

	if input.Codigo != nil {
		codigo := strings.TrimSpace(*input.Codigo)
		if codigo == "" {
			return Tombamento{}, ErrorInvalidInput
		}
		input.Codigo = &codigo
	}

	if input.Descricao != nil {
		descricao := strings.TrimSpace(*input.Descricao)
		if descricao == "" {
			descricao = DefaultDescricao
		}
		input.Descricao = &descricao
	}

	valor, err := normalizeValor(input.Valor)
	if err != nil {
		return Tombamento{}, err
	}

	tombamento, err := service.repository.Update(ctx, id, input, valor)
	if err != nil {
		switch {
		case errors.Is(err, ErrorNotFound):
			return Tombamento{}, ErrorNotFound
		case errors.Is(err, ErrorDuplicateCodigo):
			return Tombamento{}, ErrorDuplicateCodigo
		default:
			return Tombamento{}, err
		}
	}
	return tombamento, nil
}

// Delete elimina un tombamento y su foto en disco, si tenía.
// Devuelve si efectivamente se borró un archivo de foto.
func (service *Service) Delete(ctx context.Context, id string) (bool, error) {
	tombamento, err := service.repository.Delete(ctx, id)
	if err != nil {
		return false, err
	}

	if tombamento.Foto == nil {
		return false, nil
	}
	if err := service.storage.Delete(*tombamento.Foto); err != nil {
		// El registro ya no existe; un archivo huérfano no justifica fallar el request.
		service.logger.Warn("no se pudo borrar la foto", "foto", *tombamento.Foto, "error", err)
		return false, nil
	}
	return true, nil
}

// DeleteAll borra todos los tombamentos y sus fotos.
// Devuelve cuántos registros y cuántos archivos de foto se eliminaron.
func (service *Service) DeleteAll(ctx context.Context) (int, int, error) {
	tombamentos, err := service.repository.DeleteAll(ctx)
	if err != nil {
		return 0, 0, err
	}

	fotosExcluidas := service.deleteFotos(tombamentos)
	service.logger.Info("tombamentos eliminados en bloque",
		"excluidos", len(tombamentos), "fotos_excluidas", fotosExcluidas)
	return len(tombamentos), fotosExcluidas, nil
}

// DeleteByDepartamento borra todos los tombamentos de un departamento y sus fotos.
func (service *Service) DeleteByDepartamento(ctx context.Context, departamentoID string) (int, int, error) {
	if err := service.checkDepartamento(ctx, departamentoID); err != nil {
		return 0, 0, err
	}

	tombamentos, err := service.repository.DeleteByDepartamento(ctx, departamentoID)
	if err != nil {
		return 0, 0, err
	}

	fotosExcluidas := service.deleteFotos(tombamentos)
	return len(tombamentos), fotosExcluidas, nil
}

// LinkToDepartamento vincula un tombamento existente a un departamento existente.
func (service *Service) LinkToDepartamento(ctx context.Context, departamentoID, tombamentoID string) (Tombamento, error) {
	if err := service.checkDepartamento(ctx, departamentoID); err != nil {
		return Tombamento{}, err
	}
	return service.repository.SetDepartamento(ctx, tombamentoID, &departamentoID)
}

// UnlinkFromDepartamento quita el vínculo; el tombamento tiene que
// pertenecer a ese departamento.
func (service *Service) UnlinkFromDepartamento(ctx context.Context, departamentoID, tombamentoID string) (Tombamento, error) {
	tombamento, err := service.repository.UnlinkFromDepartamento(ctx, tombamentoID, departamentoID)
	if err != nil {
		if errors.Is(err, ErrorNotFound) {
			return Tombamento{}, ErrorNotInDepartamento
		}
		return Tombamento{}, err
	}
	return tombamento, nil
}

// AttachFoto asocia la URL de una foto recién subida y limpia la anterior si había.
func (service *Service) AttachFoto(ctx context.Context, id, fotoURL string) (Tombamento, error) {
	actual, err := service.repository.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Tombamento{}, ErrorNotFound
		}
		return Tombamento{}, err
	}

	tombamento, err := service.repository.SetFoto(ctx, id, &fotoURL)
	if err != nil {
		return Tombamento{}, err
	}

	// Reemplazo: la foto anterior queda huérfana, se borra del disco.
	if actual.Foto != nil && *actual.Foto != fotoURL {
		if err := service.storage.Delete(*actual.Foto); err != nil {
			service.logger.Warn("no se pudo borrar la foto anterior", "foto", *actual.Foto, "error", err)
		}
	}
	return tombamento, nil
}

// RemoveFoto borra la foto del registro y del disco (solo la foto, no el tombamento).
func (service *Service) RemoveFoto(ctx context.Context, id string) (Tombamento, error) {
	actual, err := service.repository.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Tombamento{}, ErrorNotFound
		}
		return Tombamento{}, err
	}
	if actual.Foto == nil {
		return Tombamento{}, ErrorNoFoto
	}

	if err := service.storage.Delete(*actual.Foto); err != nil {
		// Seguimos aunque el archivo no se haya podido borrar; el registro manda.
		service.logger.Warn("no se pudo borrar la foto", "foto", *actual.Foto, "error", err)
	}

	return service.repository.SetFoto(ctx, id, nil)
}

func (service *Service) checkDepartamento(ctx context.Context, departamentoID string) error {
	exists, err := service.departamentos.Exists(ctx, departamentoID)
	if err != nil {
		return err
	}
	if !exists {
		return ErrorDepartamentoNotFound
	}
	return nil
}

func (service *Service) deleteFotos(tombamentos []Tombamento) int {
	deleted := 0
	for _, tombamento := range tombamentos {
		if tombamento.Foto == nil {
			continue
		}
		if err := service.storage.Delete(*tombamento.Foto); err != nil {
			service.logger.Warn("no se pudo borrar la foto", "foto", *tombamento.Foto, "error", err)
			continue
		}
		deleted++
	}
	return deleted
}

// normalizeValor aplica el parser de montos cuando el campo vino con contenido.
// Valor presente pero no parseable es un error de validación, no un campo ausente.
func normalizeValor(raw any) (*float64, error) {
	if !money.Supplied(raw) {
		return nil, nil
	}
	valor := money.Parse(raw)
	if valor == nil {
		return nil, ErrorInvalidValor
	}
	return valor, nil
}

func trimToNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
