package tombamentos

import "time"

// DefaultDescricao se usa cuando un registro llega sin descripción.
// Nunca se persiste descripción vacía.
const DefaultDescricao = "Sem descrição"

// Tombamento representa un activo físico etiquetado, con código de negocio único.
// Valor se expone como string (DB: numeric(15,2)) para no perder precisión en JSON.
type Tombamento struct {
	ID             string    `json:"id"`
	Codigo         string    `json:"codigo"`
	Descricao      string    `json:"descricao"`
	Localizacao    *string   `json:"localizacao"`
	Oldcode        *string   `json:"oldcode"`
	Valor          *string   `json:"valor"`
	Status         int       `json:"status"`
	Foto           *string   `json:"foto"`
	DepartamentoID *string   `json:"departamento_id"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// DepartamentoResumo es el objeto anidado que acompaña la búsqueda por código.
type DepartamentoResumo struct {
	ID        string  `json:"id"`
	Codigo    string  `json:"codigo"`
	Nome      string  `json:"nome"`
	Descricao *string `json:"descricao"`
}

// TombamentoComDepartamento es un tombamento con su departamento expandido (o nil).
type TombamentoComDepartamento struct {
	Tombamento
	Departamento *DepartamentoResumo `json:"departamento"`
}

// CodigoDepartamento mapea un código de tombamento a su departamento,
// para la consulta masiva de buscar-departamentos.
type CodigoDepartamento struct {
	Codigo              string              `json:"codigo"`
	TombamentoID        string              `json:"tombamento_id"`
	TombamentoDescricao string              `json:"tombamento_descricao"`
	Departamento        *DepartamentoResumo `json:"departamento"`
}

// CreateTombamentoInput representa el payload para crear un tombamento.
// Valor acepta número JSON o string regional ("1.234,56" / "1,234.56").
type CreateTombamentoInput struct {
	Codigo      string  `json:"codigo"`
	Descricao   string  `json:"descricao"`
	Localizacao *string `json:"localizacao"`
	Oldcode     *string `json:"oldcode"`
	Valor       any     `json:"valor"`
	Status      *int    `json:"status"`
	Foto        *string `json:"foto"`
}

// UpdateTombamentoInput es un update parcial: nil = conservar el valor actual.
type UpdateTombamentoInput struct {
	Codigo      *string `json:"codigo"`
	Descricao   *string `json:"descricao"`
	Localizacao *string `json:"localizacao"`
	Oldcode     *string `json:"oldcode"`
	Valor       any     `json:"valor"`
	Status      *int    `json:"status"`
	Foto        *string `json:"foto"`
}
