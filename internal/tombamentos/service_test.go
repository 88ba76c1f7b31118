package tombamentos

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
)

// fakeRepo implementa RepositoryAPI sobre un map en memoria.
// Replica la semántica relevante del SQL real (COALESCE, unique codigo,
// status default 0) para poder testear service y motor de lotes sin DB.
type fakeRepo struct {
	tombamentos map[string]Tombamento
	nextID      int

	findErr   error
	insertErr error
	mergeErr  error
	updateErr error
	deleteErr error

	insertCalls int
	mergeCalls  int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{tombamentos: map[string]Tombamento{}}
}

func (repo *fakeRepo) newID() string {
	repo.nextID++
	return fmt.Sprintf("id-%d", repo.nextID)
}

func (repo *fakeRepo) byCodigo(codigo string) (Tombamento, bool) {
	for _, tombamento := range repo.tombamentos {
		if tombamento.Codigo == codigo {
			return tombamento, true
		}
	}
	return Tombamento{}, false
}

func (repo *fakeRepo) sorted(filter func(Tombamento) bool) []Tombamento {
	result := make([]Tombamento, 0)
	for _, tombamento := range repo.tombamentos {
		if filter == nil || filter(tombamento) {
			result = append(result, tombamento)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Codigo < result[j].Codigo })
	return result
}

func formatValor(valor *float64) *string {
	if valor == nil {
		return nil
	}
	formatted := strconv.FormatFloat(*valor, 'f', 2, 64)
	return &formatted
}

func (repo *fakeRepo) List(ctx context.Context, semDepartamento bool) ([]Tombamento, error) {
	if semDepartamento {
		return repo.sorted(func(t Tombamento) bool { return t.DepartamentoID == nil }), nil
	}
	return repo.sorted(nil), nil
}

func (repo *fakeRepo) ListByDepartamento(ctx context.Context, departamentoID string) ([]Tombamento, error) {
	return repo.sorted(func(t Tombamento) bool {
		return t.DepartamentoID != nil && *t.DepartamentoID == departamentoID
	}), nil
}

func (repo *fakeRepo) GetByID(ctx context.Context, id string) (Tombamento, error) {
	tombamento, ok := repo.tombamentos[id]
	if !ok {
		return Tombamento{}, pgx.ErrNoRows
	}
	return tombamento, nil
}

func (repo *fakeRepo) GetByCodigo(ctx context.Context, codigo string) (TombamentoComDepartamento, error) {
	tombamento, ok := repo.byCodigo(codigo)
	if !ok {
		return TombamentoComDepartamento{}, pgx.ErrNoRows
	}
	return TombamentoComDepartamento{Tombamento: tombamento}, nil
}

func (repo *fakeRepo) FindIDByCodigo(ctx context.Context, codigo string) (string, error) {
	if repo.findErr != nil {
		return "", repo.findErr
	}
	tombamento, ok := repo.byCodigo(codigo)
	if !ok {
		return "", pgx.ErrNoRows
	}
	return tombamento.ID, nil
}

func (repo *fakeRepo) BuscarDepartamentos(ctx context.Context, codigos []string) ([]CodigoDepartamento, error) {
	resultados := make([]CodigoDepartamento, 0)
	for _, codigo := range codigos {
		if tombamento, ok := repo.byCodigo(codigo); ok {
			resultados = append(resultados, CodigoDepartamento{
				Codigo:              tombamento.Codigo,
				TombamentoID:        tombamento.ID,
				TombamentoDescricao: tombamento.Descricao,
			})
		}
	}
	return resultados, nil
}

func (repo *fakeRepo) Insert(ctx context.Context, codigo string, fields InsertFields) (Tombamento, error) {
	repo.insertCalls++
	if repo.insertErr != nil {
		return Tombamento{}, repo.insertErr
	}
	if _, ok := repo.byCodigo(codigo); ok {
		return Tombamento{}, ErrorDuplicateCodigo
	}

	status := 0
	if fields.Status != nil {
		status = *fields.Status
	}
	tombamento := Tombamento{
		ID:             repo.newID(),
		Codigo:         codigo,
		Descricao:      fields.Descricao,
		Localizacao:    fields.Localizacao,
		Oldcode:        fields.Oldcode,
		Valor:          formatValor(fields.Valor),
		Status:         status,
		Foto:           fields.Foto,
		DepartamentoID: fields.DepartamentoID,
	}
	repo.tombamentos[tombamento.ID] = tombamento
	return tombamento, nil
}

func (repo *fakeRepo) MergeByCodigo(ctx context.Context, codigo string, fields InsertFields, setDepartamento bool) (Tombamento, error) {
	repo.mergeCalls++
	if repo.mergeErr != nil {
		return Tombamento{}, repo.mergeErr
	}
	tombamento, ok := repo.byCodigo(codigo)
	if !ok {
		return Tombamento{}, ErrorNotFound
	}

	tombamento.Descricao = fields.Descricao
	if fields.Localizacao != nil {
		tombamento.Localizacao = fields.Localizacao
	}
	if fields.Oldcode != nil {
		tombamento.Oldcode = fields.Oldcode
	}
	if fields.Valor != nil {
		tombamento.Valor = formatValor(fields.Valor)
	}
	if fields.Status != nil {
		tombamento.Status = *fields.Status
	}
	if setDepartamento {
		tombamento.DepartamentoID = fields.DepartamentoID
	}
	repo.tombamentos[tombamento.ID] = tombamento
	return tombamento, nil
}

func (repo *fakeRepo) Update(ctx context.Context, id string, input UpdateTombamentoInput, valor *float64) (Tombamento, error) {
	if repo.updateErr != nil {
		return Tombamento{}, repo.updateErr
	}
	tombamento, ok := repo.tombamentos[id]
	if !ok {
		return Tombamento{}, ErrorNotFound
	}

	if input.Codigo != nil {
		tombamento.Codigo = *input.Codigo
	}
	if input.Descricao != nil {
		tombamento.Descricao = *input.Descricao
	}
	if input.Localizacao != nil {
		tombamento.Localizacao = input.Localizacao
	}
	if input.Oldcode != nil {
		tombamento.Oldcode = input.Oldcode
	}
	if valor != nil {
		tombamento.Valor = formatValor(valor)
	}
	if input.Status != nil {
		tombamento.Status = *input.Status
	}
	if input.Foto != nil {
		tombamento.Foto = input.Foto
	}
	repo.tombamentos[id] = tombamento
	return tombamento, nil
}

func (repo *fakeRepo) SetDepartamento(ctx context.Context, id string, departamentoID *string) (Tombamento, error) {
	tombamento, ok := repo.tombamentos[id]
	if !ok {
		return Tombamento{}, ErrorNotFound
	}
	tombamento.DepartamentoID = departamentoID
	repo.tombamentos[id] = tombamento
	return tombamento, nil
}

func (repo *fakeRepo) UnlinkFromDepartamento(ctx context.Context, id, departamentoID string) (Tombamento, error) {
	tombamento, ok := repo.tombamentos[id]
	if !ok || tombamento.DepartamentoID == nil || *tombamento.DepartamentoID != departamentoID {
		return Tombamento{}, ErrorNotFound
	}
	tombamento.DepartamentoID = nil
	repo.tombamentos[id] = tombamento
	return tombamento, nil
}

func (repo *fakeRepo) SetFoto(ctx context.Context, id string, foto *string) (Tombamento, error) {
	tombamento, ok := repo.tombamentos[id]
	if !ok {
		return Tombamento{}, ErrorNotFound
	}
	tombamento.Foto = foto
	repo.tombamentos[id] = tombamento
	return tombamento, nil
}

func (repo *fakeRepo) Delete(ctx context.Context, id string) (Tombamento, error) {
	if repo.deleteErr != nil {
		return Tombamento{}, repo.deleteErr
	}
	tombamento, ok := repo.tombamentos[id]
	if !ok {
		return Tombamento{}, ErrorNotFound
	}
	delete(repo.tombamentos, id)
	return tombamento, nil
}

func (repo *fakeRepo) DeleteAll(ctx context.Context) ([]Tombamento, error) {
	deleted := repo.sorted(nil)
	repo.tombamentos = map[string]Tombamento{}
	return deleted, nil
}

func (repo *fakeRepo) DeleteByDepartamento(ctx context.Context, departamentoID string) ([]Tombamento, error) {
	deleted := make([]Tombamento, 0)
	for id, tombamento := range repo.tombamentos {
		if tombamento.DepartamentoID != nil && *tombamento.DepartamentoID == departamentoID {
			deleted = append(deleted, tombamento)
			delete(repo.tombamentos, id)
		}
	}
	return deleted, nil
}

// fakeDepartamentos implementa DepartamentoStore.
type fakeDepartamentos struct {
	ids map[string]bool
	err error
}

func (departamentos *fakeDepartamentos) Exists(ctx context.Context, id string) (bool, error) {
	if departamentos.err != nil {
		return false, departamentos.err
	}
	return departamentos.ids[id], nil
}

// fakeStorage implementa FotoStorage y registra lo borrado.
type fakeStorage struct {
	deleted []string
	err     error
}

func (storage *fakeStorage) Delete(fotoURL string) error {
	if storage.err != nil {
		return storage.err
	}
	storage.deleted = append(storage.deleted, fotoURL)
	return nil
}

func newTestService(repo *fakeRepo) (*Service, *fakeDepartamentos, *fakeStorage) {
	departamentos := &fakeDepartamentos{ids: map[string]bool{"dep-1": true}}
	storage := &fakeStorage{}
	return NewService(repo, departamentos, storage, nil), departamentos, storage
}

func TestService_Create(t *testing.T) {
	t.Run("requires codigo and descricao", func(t *testing.T) {
		repo := newFakeRepo()
		service, _, _ := newTestService(repo)

		_, err := service.Create(context.Background(), CreateTombamentoInput{Codigo: "  ", Descricao: "mesa"})
		require.ErrorIs(t, err, ErrorInvalidInput)

		_, err = service.Create(context.Background(), CreateTombamentoInput{Codigo: "A1", Descricao: "  "})
		require.ErrorIs(t, err, ErrorInvalidInput)
		require.Zero(t, repo.insertCalls, "repo.Insert should not be called on invalid input")
	})

	t.Run("invalid valor format", func(t *testing.T) {
		repo := newFakeRepo()
		service, _, _ := newTestService(repo)

		_, err := service.Create(context.Background(), CreateTombamentoInput{
			Codigo:    "A1",
			Descricao: "mesa",
			Valor:     "abc",
		})
		require.ErrorIs(t, err, ErrorInvalidValor)
		require.Zero(t, repo.insertCalls)
	})

	t.Run("normalizes regional valor", func(t *testing.T) {
		repo := newFakeRepo()
		service, _, _ := newTestService(repo)

		tombamento, err := service.Create(context.Background(), CreateTombamentoInput{
			Codigo:    " A1 ",
			Descricao: " mesa ",
			Valor:     "R$ 1.296,06",
		})
		require.NoError(t, err)
		require.Equal(t, "A1", tombamento.Codigo)
		require.Equal(t, "mesa", tombamento.Descricao)
		require.NotNil(t, tombamento.Valor)
		require.Equal(t, "1296.06", *tombamento.Valor)
		require.Equal(t, 0, tombamento.Status, "status defaults to 0")
	})

	t.Run("duplicate codigo", func(t *testing.T) {
		repo := newFakeRepo()
		service, _, _ := newTestService(repo)

		_, err := service.Create(context.Background(), CreateTombamentoInput{Codigo: "A1", Descricao: "mesa"})
		require.NoError(t, err)

		_, err = service.Create(context.Background(), CreateTombamentoInput{Codigo: "A1", Descricao: "silla"})
		require.ErrorIs(t, err, ErrorDuplicateCodigo)
	})
}

func TestService_Update(t *testing.T) {
	t.Run("requires at least one field", func(t *testing.T) {
		repo := newFakeRepo()
		service, _, _ := newTestService(repo)

		_, err := service.Update(context.Background(), "id", UpdateTombamentoInput{})
		require.ErrorIs(t, err, ErrorInvalidInput)
	})

	t.Run("codigo empty after trim", func(t *testing.T) {
		repo := newFakeRepo()
		service, _, _ := newTestService(repo)

		_, err := service.Update(context.Background(), "id", UpdateTombamentoInput{
			Codigo: stringPointer("   "),
		})
		require.ErrorIs(t, err, ErrorInvalidInput)
	})

	t.Run("empty descricao becomes default", func(t *testing.T) {
		repo := newFakeRepo()
		service, _, _ := newTestService(repo)
		created, err := service.Create(context.Background(), CreateTombamentoInput{Codigo: "A1", Descricao: "mesa"})
		require.NoError(t, err)

		updated, err := service.Update(context.Background(), created.ID, UpdateTombamentoInput{
			Descricao: stringPointer("   "),
		})
		require.NoError(t, err)
		require.Equal(t, DefaultDescricao, updated.Descricao)
	})

	t.Run("invalid valor format", func(t *testing.T) {
		repo := newFakeRepo()
		service, _, _ := newTestService(repo)

		_, err := service.Update(context.Background(), "id", UpdateTombamentoInput{Valor: "12,34,56x"})
		require.ErrorIs(t, err, ErrorInvalidValor)
	})

	t.Run("not found", func(t *testing.T) {
		repo := newFakeRepo()
		service, _, _ := newTestService(repo)

		_, err := service.Update(context.Background(), "missing", UpdateTombamentoInput{
			Descricao: stringPointer("x"),
		})
		require.ErrorIs(t, err, ErrorNotFound)
	})

	t.Run("partial update keeps other fields", func(t *testing.T) {
		repo := newFakeRepo()
		service, _, _ := newTestService(repo)
		created, err := service.Create(context.Background(), CreateTombamentoInput{
			Codigo:      "A1",
			Descricao:   "mesa",
			Localizacao: stringPointer("sala 4"),
			Valor:       "696,02",
		})
		require.NoError(t, err)

		updated, err := service.Update(context.Background(), created.ID, UpdateTombamentoInput{
			Descricao: stringPointer("mesa grande"),
		})
		require.NoError(t, err)
		require.Equal(t, "mesa grande", updated.Descricao)
		require.Equal(t, "A1", updated.Codigo)
		require.NotNil(t, updated.Localizacao)
		require.Equal(t, "sala 4", *updated.Localizacao)
		require.NotNil(t, updated.Valor)
		require.Equal(t, "696.02", *updated.Valor)
	})
}

func TestService_Get(t *testing.T) {
	t.Run("not found maps to domain error", func(t *testing.T) {
		repo := newFakeRepo()
		service, _, _ := newTestService(repo)

		_, err := service.Get(context.Background(), "missing")
		require.ErrorIs(t, err, ErrorNotFound)
	})

	t.Run("by codigo requires non-empty codigo", func(t *testing.T) {
		repo := newFakeRepo()
		service, _, _ := newTestService(repo)

		_, err := service.GetByCodigo(context.Background(), "   ")
		require.ErrorIs(t, err, ErrorInvalidInput)
	})
}

func TestService_BuscarDepartamentos(t *testing.T) {
	t.Run("blank codes filtered out", func(t *testing.T) {
		repo := newFakeRepo()
		service, _, _ := newTestService(repo)
		_, err := service.Create(context.Background(), CreateTombamentoInput{Codigo: "A1", Descricao: "mesa"})
		require.NoError(t, err)

		resultados, err := service.BuscarDepartamentos(context.Background(), []string{" A1 ", "", "   "})
		require.NoError(t, err)
		require.Len(t, resultados, 1)
		require.Equal(t, "A1", resultados[0].Codigo)
	})

	t.Run("all blank returns empty without touching repo", func(t *testing.T) {
		repo := newFakeRepo()
		service, _, _ := newTestService(repo)

		resultados, err := service.BuscarDepartamentos(context.Background(), []string{"", "  "})
		require.NoError(t, err)
		require.Empty(t, resultados)
	})
}

func TestService_Delete(t *testing.T) {
	t.Run("deletes foto file with the record", func(t *testing.T) {
		repo := newFakeRepo()
		service, _, storage := newTestService(repo)
		created, err := service.Create(context.Background(), CreateTombamentoInput{
			Codigo:    "A1",
			Descricao: "mesa",
			Foto:      stringPointer("/uploads/tombamento-1.jpg"),
		})
		require.NoError(t, err)

		fotoExcluida, err := service.Delete(context.Background(), created.ID)
		require.NoError(t, err)
		require.True(t, fotoExcluida)
		require.Equal(t, []string{"/uploads/tombamento-1.jpg"}, storage.deleted)
		require.Empty(t, repo.tombamentos)
	})

	t.Run("storage failure does not fail the request", func(t *testing.T) {
		repo := newFakeRepo()
		service, _, storage := newTestService(repo)
		storage.err = errors.New("disk gone")
		created, err := service.Create(context.Background(), CreateTombamentoInput{
			Codigo:    "A1",
			Descricao: "mesa",
			Foto:      stringPointer("/uploads/x.jpg"),
		})
		require.NoError(t, err)

		fotoExcluida, err := service.Delete(context.Background(), created.ID)
		require.NoError(t, err)
		require.False(t, fotoExcluida)
	})

	t.Run("not found", func(t *testing.T) {
		repo := newFakeRepo()
		service, _, _ := newTestService(repo)

		_, err := service.Delete(context.Background(), "missing")
		require.ErrorIs(t, err, ErrorNotFound)
	})
}

func TestService_DeleteAll(t *testing.T) {
	repo := newFakeRepo()
	service, _, storage := newTestService(repo)

	_, err := service.Create(context.Background(), CreateTombamentoInput{Codigo: "A1", Descricao: "mesa"})
	require.NoError(t, err)
	_, err = service.Create(context.Background(), CreateTombamentoInput{
		Codigo: "A2", Descricao: "silla", Foto: stringPointer("/uploads/a2.png"),
	})
	require.NoError(t, err)

	excluidos, fotosExcluidas, err := service.DeleteAll(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, excluidos)
	require.Equal(t, 1, fotosExcluidas)
	require.Equal(t, []string{"/uploads/a2.png"}, storage.deleted)
	require.Empty(t, repo.tombamentos)
}

func TestService_Departamentos(t *testing.T) {
	t.Run("link requires existing departamento", func(t *testing.T) {
		repo := newFakeRepo()
		service, _, _ := newTestService(repo)

		_, err := service.LinkToDepartamento(context.Background(), "dep-missing", "id")
		require.ErrorIs(t, err, ErrorDepartamentoNotFound)
	})

	t.Run("link and unlink", func(t *testing.T) {
		repo := newFakeRepo()
		service, _, _ := newTestService(repo)
		created, err := service.Create(context.Background(), CreateTombamentoInput{Codigo: "A1", Descricao: "mesa"})
		require.NoError(t, err)

		linked, err := service.LinkToDepartamento(context.Background(), "dep-1", created.ID)
		require.NoError(t, err)
		require.NotNil(t, linked.DepartamentoID)
		require.Equal(t, "dep-1", *linked.DepartamentoID)

		unlinked, err := service.UnlinkFromDepartamento(context.Background(), "dep-1", created.ID)
		require.NoError(t, err)
		require.Nil(t, unlinked.DepartamentoID)
	})

	t.Run("unlink from wrong departamento", func(t *testing.T) {
		repo := newFakeRepo()
		service, _, _ := newTestService(repo)
		created, err := service.Create(context.Background(), CreateTombamentoInput{Codigo: "A1", Descricao: "mesa"})
		require.NoError(t, err)

		_, err = service.UnlinkFromDepartamento(context.Background(), "dep-1", created.ID)
		require.ErrorIs(t, err, ErrorNotInDepartamento)
	})

	t.Run("delete by departamento counts fotos", func(t *testing.T) {
		repo := newFakeRepo()
		service, departamentos, storage := newTestService(repo)
		departamentos.ids["dep-2"] = true

		first, err := service.Create(context.Background(), CreateTombamentoInput{
			Codigo: "A1", Descricao: "mesa", Foto: stringPointer("/uploads/a1.jpg"),
		})
		require.NoError(t, err)
		_, err = service.LinkToDepartamento(context.Background(), "dep-1", first.ID)
		require.NoError(t, err)

		second, err := service.Create(context.Background(), CreateTombamentoInput{Codigo: "A2", Descricao: "silla"})
		require.NoError(t, err)
		_, err = service.LinkToDepartamento(context.Background(), "dep-2", second.ID)
		require.NoError(t, err)

		excluidos, fotosExcluidas, err := service.DeleteByDepartamento(context.Background(), "dep-1")
		require.NoError(t, err)
		require.Equal(t, 1, excluidos)
		require.Equal(t, 1, fotosExcluidas)
		require.Equal(t, []string{"/uploads/a1.jpg"}, storage.deleted)
		require.Len(t, repo.tombamentos, 1, "other departamento untouched")
	})
}

func TestService_Fotos(t *testing.T) {
	t.Run("attach replaces and cleans old file", func(t *testing.T) {
		repo := newFakeRepo()
		service, _, storage := newTestService(repo)
		created, err := service.Create(context.Background(), CreateTombamentoInput{
			Codigo: "A1", Descricao: "mesa", Foto: stringPointer("/uploads/old.jpg"),
		})
		require.NoError(t, err)

		updated, err := service.AttachFoto(context.Background(), created.ID, "/uploads/new.jpg")
		require.NoError(t, err)
		require.NotNil(t, updated.Foto)
		require.Equal(t, "/uploads/new.jpg", *updated.Foto)
		require.Equal(t, []string{"/uploads/old.jpg"}, storage.deleted)
	})

	t.Run("attach to missing tombamento", func(t *testing.T) {
		repo := newFakeRepo()
		service, _, _ := newTestService(repo)

		_, err := service.AttachFoto(context.Background(), "missing", "/uploads/new.jpg")
		require.ErrorIs(t, err, ErrorNotFound)
	})

	t.Run("remove foto", func(t *testing.T) {
		repo := newFakeRepo()
		service, _, storage := newTestService(repo)
		created, err := service.Create(context.Background(), CreateTombamentoInput{
			Codigo: "A1", Descricao: "mesa", Foto: stringPointer("/uploads/a1.jpg"),
		})
		require.NoError(t, err)

		updated, err := service.RemoveFoto(context.Background(), created.ID)
		require.NoError(t, err)
		require.Nil(t, updated.Foto)
		require.Equal(t, []string{"/uploads/a1.jpg"}, storage.deleted)
	})

	t.Run("remove without foto", func(t *testing.T) {
		repo := newFakeRepo()
		service, _, _ := newTestService(repo)
		created, err := service.Create(context.Background(), CreateTombamentoInput{Codigo: "A1", Descricao: "mesa"})
		require.NoError(t, err)

		_, err = service.RemoveFoto(context.Background(), created.ID)
		require.ErrorIs(t, err, ErrorNoFoto)
	})
}

func stringPointer(value string) *string {
	return &value
}

func integerPointer(value int) *int {
	return &value
}
