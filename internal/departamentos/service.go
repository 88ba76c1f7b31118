package departamentos

import (
	"context"
	"errors"
	"strings"
)

// Errores de dominio (no HTTP). El handler los traduce a status codes.
var (
	ErrorInvalidInput    = errors.New("invalid input")
	ErrorDuplicateCodigo = errors.New("duplicate departamento codigo")
	ErrorNotFound        = errors.New("departamento not found")
	ErrorHasTombamentos  = errors.New("departamento has linked tombamentos")
)

// RepositoryAPI define lo que el service necesita de la capa de datos.
type RepositoryAPI interface {
	List(ctx context.Context) ([]Departamento, error)
	GetByID(ctx context.Context, id string) (Departamento, error)
	GetByCodigo(ctx context.Context, codigo string) (Departamento, error)
	Insert(ctx context.Context, input CreateDepartamentoInput) (Departamento, error)
	Update(ctx context.Context, id string, input UpdateDepartamentoInput) (Departamento, error)
	CountTombamentos(ctx context.Context, id string) (int, error)
	Delete(ctx context.Context, id string) error
}

// Service contiene reglas de negocio de departamentos.
type Service struct {
	repository RepositoryAPI
}

// NewService crea un service de departamentos.
func NewService(repository RepositoryAPI) *Service {
	return &Service{repository: repository}
}

// List devuelve todos los departamentos con su total de tombamentos.
func (service *Service) List(ctx context.Context) ([]Departamento, error) {
	return service.repository.List(ctx)
}

// Get obtiene un departamento por ID.
func (service *Service) Get(ctx context.Context, id string) (Departamento, error) {
	departamento, err := service.repository.GetByID(ctx, id)
	if err != nil {
		if isNoRows(err) {
			return Departamento{}, ErrorNotFound
		}
		return Departamento{}, err
	}
	return departamento, nil
}

// GetByCodigo obtiene un departamento por su código de negocio.
func (service *Service) GetByCodigo(ctx context.Context, codigo string) (Departamento, error) {
	codigo = strings.TrimSpace(codigo)
	if codigo == "" {
		return Departamento{}, ErrorInvalidInput
	}

	departamento, err := service.repository.GetByCodigo(ctx, codigo)
	if err != nil {
		if isNoRows(err) {
			return Departamento{}, ErrorNotFound
		}
		return Departamento{}, err
	}
	return departamento, nil
}

// Create valida reglas y crea el departamento en DB.
func (service *Service) Create(ctx context.Context, input CreateDepartamentoInput) (Departamento, error) {
	// Normalización mínima.
	input.Codigo = strings.TrimSpace(input.Codigo)
	input.Nome = strings.TrimSpace(input.Nome)

	// codigo y nome son obligatorios.
	if input.Codigo == "" || input.Nome == "" {
		return Departamento{}, ErrorInvalidInput
	}

	departamento, err := service.repository.Insert(ctx, input)
	if err != nil {
		if errors.Is(err, ErrorDuplicateCodigo) {
			return Departamento{}, ErrorDuplicateCodigo
		}
		return Departamento{}, err
	}
	return departamento, nil
}

// Update valida reglas y actualiza parcialmente un departamento.
func (service *Service) Update(ctx context.Context, id string, input UpdateDepartamentoInput) (Departamento, error) {
	// Debe venir al menos un campo.
	if input.Codigo == nil && input.Nome == nil && input.Descricao == nil {
		return Departamento{}, ErrorInvalidInput
	}

	if input.Codigo != nil {
		codigo := strings.TrimSpace(*input.Codigo)
		if codigo == "" {
			return Departamento{}, ErrorInvalidInput
		}
		input.Codigo = &codigo
	}

	if input.Nome != nil {
		nome := strings.TrimSpace(*input.Nome)
		if nome == "" {
			return Departamento{}, ErrorInvalidInput
		}
		input.Nome = &nome
	}

	departamento, err := service.repository.Update(ctx, id, input)
	if err != nil {
		switch {
		case errors.Is(err, ErrorNotFound):
			return Departamento{}, ErrorNotFound
		case errors.Is(err, ErrorDuplicateCodigo):
			return Departamento{}, ErrorDuplicateCodigo
		default:
			return Departamento{}, err
		}
	}
	return departamento, nil
}

// Delete elimina un departamento. Se niega mientras tenga tombamentos
// vinculados: primero hay que desvincularlos o borrarlos en bloque.
// Devuelve la cantidad de vinculados cuando el borrado se rechaza.
func (service *Service) Delete(ctx context.Context, id string) (int, error) {
	linked, err := service.repository.CountTombamentos(ctx, id)
	if err != nil {
		return 0, err
	}
	if linked > 0 {
		return linked, ErrorHasTombamentos
	}

	return 0, service.repository.Delete(ctx, id)
}
