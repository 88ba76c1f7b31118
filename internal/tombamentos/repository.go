package tombamentos

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB es el subconjunto de pgxpool.Pool que usa el repositorio.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Repository accede a la tabla tombamentos.
// Contiene SQL y mapeo DB → modelo.
type Repository struct {
	database DB
}

// NewRepository crea un repositorio de tombamentos.
func NewRepository(database DB) *Repository {
	return &Repository{database: database}
}

// Las columnas siempre en el mismo orden que scanTombamento.
// valor::text para que numeric no pase por float.
const tombamentoColumns = `
	id, codigo, descricao, localizacao, oldcode, valor::text, status, foto,
	departamento_id, created_at, updated_at`

func scanTombamento(row pgx.Row) (Tombamento, error) {
	var tombamento Tombamento
	err := row.Scan(
		&tombamento.ID,
		&tombamento.Codigo,
		&tombamento.Descricao,
		&tombamento.Localizacao,
		&tombamento.Oldcode,
		&tombamento.Valor,
		&tombamento.Status,
		&tombamento.Foto,
		&tombamento.DepartamentoID,
		&tombamento.CreatedAt,
		&tombamento.UpdatedAt,
	)
	return tombamento, err
}

func collectTombamentos(rows pgx.Rows) ([]Tombamento, error) {
	defer rows.Close()

	tombamentos := make([]Tombamento, 0)
	for rows.Next() {
		tombamento, err := scanTombamento(rows)
		if err != nil {
			return nil, err
		}
		tombamentos = append(tombamentos, tombamento)
	}
	return tombamentos, rows.Err()
}

// List devuelve todos los tombamentos ordenados por código.
// Con semDepartamento=true devuelve solo los "sueltos" (sin departamento).
func (repository *Repository) List(ctx context.Context, semDepartamento bool) ([]Tombamento, error) {
	query := `SELECT` + tombamentoColumns + ` FROM tombamentos`
	if semDepartamento {
		query += ` WHERE departamento_id IS NULL`
	}
	query += ` ORDER BY codigo;`

	rows, err := repository.database.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	return collectTombamentos(rows)
}

// ListByDepartamento devuelve los tombamentos de un departamento, por código.
func (repository *Repository) ListByDepartamento(ctx context.Context, departamentoID string) ([]Tombamento, error) {
	const query = `
		SELECT` + tombamentoColumns + `
		FROM tombamentos
		WHERE departamento_id = $1
		ORDER BY codigo;
	`

	rows, err := repository.database.Query(ctx, query, departamentoID)
	if err != nil {
		return nil, err
	}
	return collectTombamentos(rows)
}

// GetByID obtiene un tombamento por id.
func (repository *Repository) GetByID(ctx context.Context, id string) (Tombamento, error) {
	const query = `SELECT` + tombamentoColumns + ` FROM tombamentos WHERE id = $1;`

	return scanTombamento(repository.database.QueryRow(ctx, query, id))
}

// GetByCodigo obtiene un tombamento por código con su departamento expandido.
func (repository *Repository) GetByCodigo(ctx context.Context, codigo string) (TombamentoComDepartamento, error) {
	const query = `
		SELECT t.id, t.codigo, t.descricao, t.localizacao, t.oldcode, t.valor::text,
		       t.status, t.foto, t.departamento_id, t.created_at, t.updated_at,
		       d.id, d.codigo, d.nome, d.descricao
		FROM tombamentos t
		LEFT JOIN departamentos d ON t.departamento_id = d.id
		WHERE t.codigo = $1;
	`

	var result TombamentoComDepartamento
	var departamentoID, departamentoCodigo, departamentoNome *string
	var departamentoDescricao *string

	err := repository.database.QueryRow(ctx, query, codigo).Scan(
		&result.ID,
		&result.Codigo,
		&result.Descricao,
		&result.Localizacao,
		&result.Oldcode,
		&result.Valor,
		&result.Status,
		&result.Foto,
		&result.DepartamentoID,
		&result.CreatedAt,
		&result.UpdatedAt,
		&departamentoID,
		&departamentoCodigo,
		&departamentoNome,
		&departamentoDescricao,
	)
	if err != nil {
		return TombamentoComDepartamento{}, err
	}

	if departamentoID != nil {
		result.Departamento = &DepartamentoResumo{
			ID:        *departamentoID,
			Codigo:    *departamentoCodigo,
			Nome:      *departamentoNome,
			Descricao: departamentoDescricao,
		}
	}
	return result, nil
}

// FindIDByCodigo busca el id de un tombamento por su código de negocio.
// La búsqueda es global, no por departamento: un registro puede "mudarse".
func (repository *Repository) FindIDByCodigo(ctx context.Context, codigo string) (string, error) {
	const query = `SELECT id FROM tombamentos WHERE codigo = $1;`

	var id string
	err := repository.database.QueryRow(ctx, query, codigo).Scan(&id)
	return id, err
}

// BuscarDepartamentos resuelve de una vez el departamento de varios códigos.
func (repository *Repository) BuscarDepartamentos(ctx context.Context, codigos []string) ([]CodigoDepartamento, error) {
	const query = `
		SELECT t.codigo, t.id, t.descricao,
		       d.id, d.codigo, d.nome, d.descricao
		FROM tombamentos t
		LEFT JOIN departamentos d ON t.departamento_id = d.id
		WHERE t.codigo = ANY($1::text[]);
	`

	rows, err := repository.database.Query(ctx, query, codigos)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	resultados := make([]CodigoDepartamento, 0, len(codigos))
	for rows.Next() {
		var item CodigoDepartamento
		var departamentoID, departamentoCodigo, departamentoNome *string
		var departamentoDescricao *string

		err := rows.Scan(
			&item.Codigo,
			&item.TombamentoID,
			&item.TombamentoDescricao,
			&departamentoID,
			&departamentoCodigo,
			&departamentoNome,
			&departamentoDescricao,
		)
		if err != nil {
			return nil, err
		}

		if departamentoID != nil {
			item.Departamento = &DepartamentoResumo{
				ID:        *departamentoID,
				Codigo:    *departamentoCodigo,
				Nome:      *departamentoNome,
				Descricao: departamentoDescricao,
			}
		}
		resultados = append(resultados, item)
	}
	return resultados, rows.Err()
}

// InsertFields son los campos ya normalizados que persiste el camino de
// creación (single y batch comparten este shape).
type InsertFields struct {
	Descricao      string
	Localizacao    *string
	Oldcode        *string
	Valor          *float64
	Status         *int
	Foto           *string
	DepartamentoID *string
}

// Insert crea un tombamento y devuelve el registro persistido.
// status por default es 0 en todos los caminos de entrada.
func (repository *Repository) Insert(ctx context.Context, codigo string, fields InsertFields) (Tombamento, error) {
	const query = `
		INSERT INTO tombamentos (codigo, descricao, localizacao, oldcode, valor, status, foto, departamento_id)
		VALUES ($1, $2, $3, $4, $5::numeric, COALESCE($6, 0), $7, $8)
		RETURNING` + tombamentoColumns + `;
	`

	tombamento, err := scanTombamento(repository.database.QueryRow(ctx, query,
		codigo, fields.Descricao, fields.Localizacao, fields.Oldcode,
		fields.Valor, fields.Status, fields.Foto, fields.DepartamentoID,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return Tombamento{}, ErrorDuplicateCodigo
		}
		return Tombamento{}, err
	}
	return tombamento, nil
}

// MergeByCodigo actualiza un tombamento existente campo a campo:
// lo que vino se pisa, lo que no vino se conserva (COALESCE).
// La descripción viaja siempre (ya normalizada, nunca vacía).
// setDepartamento mueve el registro al departamento dado, incluso si estaba en otro.
func (repository *Repository) MergeByCodigo(ctx context.Context, codigo string, fields InsertFields, setDepartamento bool) (Tombamento, error) {
	const query = `
		UPDATE tombamentos SET
			descricao = $2,
			localizacao = COALESCE($3, localizacao),
			oldcode = COALESCE($4, oldcode),
			valor = COALESCE($5::numeric, valor),
			status = COALESCE($6, status),
			departamento_id = CASE WHEN $7::boolean THEN $8::uuid ELSE departamento_id END,
			updated_at = NOW()
		WHERE codigo = $1
		RETURNING` + tombamentoColumns + `;
	`

	tombamento, err := scanTombamento(repository.database.QueryRow(ctx, query,
		codigo, fields.Descricao, fields.Localizacao, fields.Oldcode,
		fields.Valor, fields.Status, setDepartamento, fields.DepartamentoID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Tombamento{}, ErrorNotFound
		}
		return Tombamento{}, err
	}
	return tombamento, nil
}

// Update actualiza parcialmente por id (COALESCE campo a campo).
func (repository *Repository) Update(ctx context.Context, id string, input UpdateTombamentoInput, valor *float64) (Tombamento, error) {
	const query = `
		UPDATE tombamentos SET
			codigo = COALESCE($2, codigo),
			descricao = COALESCE($3, descricao),
			localizacao = COALESCE($4, localizacao),
			oldcode = COALESCE($5, oldcode),
			valor = COALESCE($6::numeric, valor),
			status = COALESCE($7, status),
			foto = COALESCE($8, foto),
			updated_at = NOW()
		WHERE id = $1
		RETURNING` + tombamentoColumns + `;
	`

	tombamento, err := scanTombamento(repository.database.QueryRow(ctx, query,
		id, input.Codigo, input.Descricao, input.Localizacao, input.Oldcode,
		valor, input.Status, input.Foto,
	))
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return Tombamento{}, ErrorNotFound
		case isUniqueViolation(err):
			return Tombamento{}, ErrorDuplicateCodigo
		}
		return Tombamento{}, err
	}
	return tombamento, nil
}

// SetDepartamento vincula (o desvincula con nil) un tombamento a un departamento.
func (repository *Repository) SetDepartamento(ctx context.Context, id string, departamentoID *string) (Tombamento, error) {
	const query = `
		UPDATE tombamentos SET departamento_id = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING` + tombamentoColumns + `;
	`

	tombamento, err := scanTombamento(repository.database.QueryRow(ctx, query, id, departamentoID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Tombamento{}, ErrorNotFound
		}
		return Tombamento{}, err
	}
	return tombamento, nil
}

// UnlinkFromDepartamento quita el vínculo solo si el tombamento pertenece
// a ese departamento; si no, pgx.ErrNoRows → not found.
func (repository *Repository) UnlinkFromDepartamento(ctx context.Context, id, departamentoID string) (Tombamento, error) {
	const query = `
		UPDATE tombamentos SET departamento_id = NULL, updated_at = NOW()
		WHERE id = $1 AND departamento_id = $2
		RETURNING` + tombamentoColumns + `;
	`

	tombamento, err := scanTombamento(repository.database.QueryRow(ctx, query, id, departamentoID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Tombamento{}, ErrorNotFound
		}
		return Tombamento{}, err
	}
	return tombamento, nil
}

// SetFoto actualiza (o limpia con nil) la referencia de foto.
func (repository *Repository) SetFoto(ctx context.Context, id string, foto *string) (Tombamento, error) {
	const query = `
		UPDATE tombamentos SET foto = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING` + tombamentoColumns + `;
	`

	tombamento, err := scanTombamento(repository.database.QueryRow(ctx, query, id, foto))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Tombamento{}, ErrorNotFound
		}
		return Tombamento{}, err
	}
	return tombamento, nil
}

// Delete elimina un tombamento y devuelve el registro borrado
// (el caller necesita la foto para limpiar el archivo).
func (repository *Repository) Delete(ctx context.Context, id string) (Tombamento, error) {
	const query = `DELETE FROM tombamentos WHERE id = $1 RETURNING` + tombamentoColumns + `;`

	tombamento, err := scanTombamento(repository.database.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Tombamento{}, ErrorNotFound
		}
		return Tombamento{}, err
	}
	return tombamento, nil
}

// DeleteAll borra todos los tombamentos y devuelve los registros borrados.
func (repository *Repository) DeleteAll(ctx context.Context) ([]Tombamento, error) {
	const query = `DELETE FROM tombamentos RETURNING` + tombamentoColumns + `;`

	rows, err := repository.database.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	return collectTombamentos(rows)
}

// DeleteByDepartamento borra los tombamentos de un departamento y los devuelve.
func (repository *Repository) DeleteByDepartamento(ctx context.Context, departamentoID string) ([]Tombamento, error) {
	const query = `DELETE FROM tombamentos WHERE departamento_id = $1 RETURNING` + tombamentoColumns + `;`

	rows, err := repository.database.Query(ctx, query, departamentoID)
	if err != nil {
		return nil, err
	}
	return collectTombamentos(rows)
}

// Postgres: unique_violation = 23505 (índice unique sobre codigo).
func isUniqueViolation(err error) bool {
	var postgresError *pgconn.PgError
	return errors.As(err, &postgresError) && postgresError.Code == "23505"
}
