package departamentos

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB es el subconjunto de pgxpool.Pool que usa el repositorio.
// Tenerlo como interface permite testear con fakes sin DB real.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Repository accede a la tabla departamentos.
// Contiene SQL y mapeo DB → modelo.
type Repository struct {
	database DB
}

// NewRepository crea un repositorio de departamentos.
func NewRepository(database DB) *Repository {
	return &Repository{database: database}
}

// Las columnas siempre en el mismo orden que scanDepartamento.
const departamentoColumns = `
	d.id, d.codigo, d.nome, d.descricao,
	(SELECT COUNT(*) FROM tombamentos t WHERE t.departamento_id = d.id) AS total_tombamentos,
	d.created_at, d.updated_at`

func scanDepartamento(row pgx.Row) (Departamento, error) {
	var departamento Departamento
	err := row.Scan(
		&departamento.ID,
		&departamento.Codigo,
		&departamento.Nome,
		&departamento.Descricao,
		&departamento.TotalTombamentos,
		&departamento.CreatedAt,
		&departamento.UpdatedAt,
	)
	return departamento, err
}

// List devuelve todos los departamentos ordenados por nombre.
func (repository *Repository) List(ctx context.Context) ([]Departamento, error) {
	const query = `
		SELECT` + departamentoColumns + `
		FROM departamentos d
		ORDER BY d.nome;
	`

	rows, err := repository.database.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	departamentos := make([]Departamento, 0)
	for rows.Next() {
		departamento, err := scanDepartamento(rows)
		if err != nil {
			return nil, err
		}
		departamentos = append(departamentos, departamento)
	}
	return departamentos, rows.Err()
}

// GetByID obtiene un departamento por id.
func (repository *Repository) GetByID(ctx context.Context, id string) (Departamento, error) {
	const query = `
		SELECT` + departamentoColumns + `
		FROM departamentos d
		WHERE d.id = $1;
	`

	return scanDepartamento(repository.database.QueryRow(ctx, query, id))
}

// GetByCodigo obtiene un departamento por su código de negocio.
func (repository *Repository) GetByCodigo(ctx context.Context, codigo string) (Departamento, error) {
	const query = `
		SELECT` + departamentoColumns + `
		FROM departamentos d
		WHERE d.codigo = $1;
	`

	return scanDepartamento(repository.database.QueryRow(ctx, query, codigo))
}

// Exists reporta si el departamento existe. Lo usa el paquete tombamentos
// antes de importar lotes o vincular registros.
func (repository *Repository) Exists(ctx context.Context, id string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM departamentos WHERE id = $1);`

	var exists bool
	err := repository.database.QueryRow(ctx, query, id).Scan(&exists)
	return exists, err
}

// Insert crea un departamento y devuelve el registro persistido.
func (repository *Repository) Insert(ctx context.Context, input CreateDepartamentoInput) (Departamento, error) {
	const query = `
		INSERT INTO departamentos (codigo, nome, descricao)
		VALUES ($1, $2, $3)
		RETURNING id, codigo, nome, descricao, 0 AS total_tombamentos, created_at, updated_at;
	`

	departamento, err := scanDepartamento(
		repository.database.QueryRow(ctx, query, input.Codigo, input.Nome, input.Descricao),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return Departamento{}, ErrorDuplicateCodigo
		}
		return Departamento{}, err
	}
	return departamento, nil
}

// Update actualiza parcialmente: los campos nil conservan el valor previo (COALESCE).
func (repository *Repository) Update(ctx context.Context, id string, input UpdateDepartamentoInput) (Departamento, error) {
	const query = `
		UPDATE departamentos d SET
			codigo = COALESCE($2, codigo),
			nome = COALESCE($3, nome),
			descricao = COALESCE($4, descricao),
			updated_at = NOW()
		WHERE d.id = $1
		RETURNING` + departamentoColumns + `;
	`

	departamento, err := scanDepartamento(
		repository.database.QueryRow(ctx, query, id, input.Codigo, input.Nome, input.Descricao),
	)
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return Departamento{}, ErrorNotFound
		case isUniqueViolation(err):
			return Departamento{}, ErrorDuplicateCodigo
		}
		return Departamento{}, err
	}
	return departamento, nil
}

// CountTombamentos cuenta los tombamentos vinculados al departamento.
func (repository *Repository) CountTombamentos(ctx context.Context, id string) (int, error) {
	const query = `SELECT COUNT(*) FROM tombamentos WHERE departamento_id = $1;`

	var total int
	err := repository.database.QueryRow(ctx, query, id).Scan(&total)
	return total, err
}

// Delete elimina un departamento por id.
func (repository *Repository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM departamentos WHERE id = $1;`

	tag, err := repository.database.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrorNotFound
	}
	return nil
}

// Postgres: unique_violation = 23505 (índice unique sobre codigo).
func isUniqueViolation(err error) bool {
	var postgresError *pgconn.PgError
	return errors.As(err, &postgresError) && postgresError.Code == "23505"
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
