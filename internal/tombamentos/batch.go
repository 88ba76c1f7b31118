package tombamentos

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
)

// Estados posibles de un registro dentro del resultado de un lote.
const (
	StatusCriado     = "criado"
	StatusAtualizado = "atualizado"
	StatusIgnorado   = "ignorado"
	StatusErro       = "erro"
)

// BatchRecord es un registro de entrada del lote.
// Codigo acepta string o número JSON: las planillas exportan de las dos formas.
type BatchRecord struct {
	Codigo      any     `json:"codigo"`
	Descricao   string  `json:"descricao"`
	Localizacao string  `json:"localizacao"`
	Oldcode     *string `json:"oldcode"`
	Valor       any     `json:"valor"`
	Status      *int    `json:"status"`
}

// Detalhe es la entrada del ledger para un registro procesado.
// Codigo e ID quedan en nil cuando no aplican (código ausente, error antes de persistir).
type Detalhe struct {
	Codigo *string `json:"codigo"`
	Status string  `json:"status"`
	ID     *string `json:"id,omitempty"`
	Motivo string  `json:"motivo,omitempty"`
}

// ReconcileResult resume el procesamiento de un lote completo.
// Invariante: Total == Criados + Atualizados + Ignorados + Erros == len(Detalhes).
type ReconcileResult struct {
	Total       int       `json:"total"`
	Criados     int       `json:"criados"`
	Atualizados int       `json:"atualizados"`
	Ignorados   int       `json:"ignorados"`
	Erros       int       `json:"erros"`
	Detalhes    []Detalhe `json:"detalhes"`
}

// ReconcileOptions controla variantes del motor de lotes.
// DepartamentoID no-nil fuerza ese departamento en cada registro del lote.
// MissingCodeAsIgnorado marca los registros sin código como ignorados
// en vez de errores (importaciones de planillas con filas a medio llenar).
type ReconcileOptions struct {
	DepartamentoID        *string
	MissingCodeAsIgnorado bool
}

// Reconcile procesa un lote con semántica create-or-merge por código:
// si el código ya existe actualiza ese registro, si no lo crea.
// Cada registro se resuelve de forma independiente; un registro malo
// nunca aborta el resto del lote. Siempre devuelve el ledger completo.
func (service *Service) Reconcile(ctx context.Context, records []BatchRecord, options ReconcileOptions) ReconcileResult {
	result := ReconcileResult{Detalhes: make([]Detalhe, 0, len(records))}

	for index, record := range records {
		detalhe := service.reconcileOne(ctx, record, options)
		result.Detalhes = append(result.Detalhes, detalhe)
		result.Total++

		switch detalhe.Status {
		case StatusCriado:
			result.Criados++
		case StatusAtualizado:
			result.Atualizados++
		case StatusIgnorado:
			result.Ignorados++
		default:
			result.Erros++
		}

		if (index+1)%50 == 0 {
			service.logger.Info("procesando lote de tombamentos",
				"procesados", index+1, "total", len(records))
		}
	}

	service.logger.Info("lote de tombamentos completado",
		"total", result.Total,
		"criados", result.Criados,
		"atualizados", result.Atualizados,
		"ignorados", result.Ignorados,
		"erros", result.Erros)
	return result
}

// ReconcileForDepartamento valida el departamento y corre el lote forzando
// departamento_id en todos los registros.
func (service *Service) ReconcileForDepartamento(ctx context.Context, departamentoID string, records []BatchRecord, missingCodeAsIgnorado bool) (ReconcileResult, error) {
	if err := service.checkDepartamento(ctx, departamentoID); err != nil {
		return ReconcileResult{}, err
	}

	return service.Reconcile(ctx, records, ReconcileOptions{
		DepartamentoID:        &departamentoID,
		MissingCodeAsIgnorado: missingCodeAsIgnorado,
	}), nil
}

func (service *Service) reconcileOne(ctx context.Context, record BatchRecord, options ReconcileOptions) Detalhe {
	codigo := codigoString(record.Codigo)
	if codigo == "" {
		if options.MissingCodeAsIgnorado {
			return Detalhe{Status: StatusIgnorado, Motivo: "codigo ausente"}
		}
		return Detalhe{Status: StatusErro, Motivo: "codigo ausente"}
	}

	valor, err := normalizeValor(record.Valor)
	if err != nil {
		return Detalhe{Codigo: &codigo, Status: StatusErro, Motivo: "valor com formato invalido"}
	}

	descricao := strings.TrimSpace(record.Descricao)
	if descricao == "" {
		descricao = DefaultDescricao
	}

	fields := InsertFields{
		Descricao:      descricao,
		Localizacao:    trimToNil(&record.Localizacao),
		Oldcode:        trimToNil(record.Oldcode),
		Valor:          valor,
		Status:         record.Status,
		DepartamentoID: options.DepartamentoID,
	}

	existingID, err := service.repository.FindIDByCodigo(ctx, codigo)
	switch {
	case err == nil:
		tombamento, err := service.repository.MergeByCodigo(ctx, codigo, fields, options.DepartamentoID != nil)
		if err != nil {
			service.logger.Error("fallo al actualizar registro del lote", "codigo", codigo, "error", err)
			return Detalhe{Codigo: &codigo, Status: StatusErro, ID: &existingID, Motivo: "erro ao atualizar registro"}
		}
		return Detalhe{Codigo: &codigo, Status: StatusAtualizado, ID: &tombamento.ID}

	case errors.Is(err, pgx.ErrNoRows):
		tombamento, err := service.repository.Insert(ctx, codigo, fields)
		if err != nil {
			service.logger.Error("fallo al crear registro del lote", "codigo", codigo, "error", err)
			return Detalhe{Codigo: &codigo, Status: StatusErro, Motivo: "erro ao criar registro"}
		}
		return Detalhe{Codigo: &codigo, Status: StatusCriado, ID: &tombamento.ID}

	default:
		service.logger.Error("fallo al buscar registro del lote", "codigo", codigo, "error", err)
		return Detalhe{Codigo: &codigo, Status: StatusErro, Motivo: "erro ao consultar registro"}
	}
}

// codigoString normaliza el código que puede venir como string o número JSON.
// Números float enteros se imprimen sin decimales (8817, no 8817.000000).
func codigoString(raw any) string {
	switch value := raw.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(value)
	case float64:
		if value == float64(int64(value)) {
			return strconv.FormatInt(int64(value), 10)
		}
		return strconv.FormatFloat(value, 'f', -1, 64)
	case int:
		return strconv.Itoa(value)
	case int64:
		return strconv.FormatInt(value, 10)
	default:
		return strings.TrimSpace(fmt.Sprint(value))
	}
}
