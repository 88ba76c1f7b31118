package departamentos

import "time"

// Departamento agrupa tombamentos (activos físicos) bajo un código único.
// TotalTombamentos es calculado con un subquery, no es columna de la tabla.
type Departamento struct {
	ID               string    `json:"id"`
	Codigo           string    `json:"codigo"`
	Nome             string    `json:"nome"`
	Descricao        *string   `json:"descricao"`
	TotalTombamentos int       `json:"total_tombamentos"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// CreateDepartamentoInput representa el payload para crear un departamento.
type CreateDepartamentoInput struct {
	Codigo    string  `json:"codigo"`
	Nome      string  `json:"nome"`
	Descricao *string `json:"descricao"`
}

// UpdateDepartamentoInput es un update parcial: nil = conservar el valor actual.
type UpdateDepartamentoInput struct {
	Codigo    *string `json:"codigo"`
	Nome      *string `json:"nome"`
	Descricao *string `json:"descricao"`
}
