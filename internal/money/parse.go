package money

import (
	"encoding/json"
	"strconv"
	"strings"
	"unicode"
)

// Parse convierte un valor de forma desconocida (número ya decodificado por
// encoding/json, string en formato regional, nil) en un monto numérico.
// Devuelve nil para "sin valor": entrada nil, vacía o que no se pudo parsear.
// Nunca devuelve error: el caller distingue "ausente" de "malformado"
// comparando contra la entrada cruda con Supplied.
//
// Para strings se infiere el separador decimal sin flag de locale:
// "1.234,56" (pt-BR) y "1,234.56" (en-US) se aceptan por igual.
func Parse(value any) *float64 {
	switch v := value.(type) {
	case nil:
		return nil
	case float64:
		return &v
	case float32:
		f := float64(v)
		return &f
	case int:
		f := float64(v)
		return &f
	case int32:
		f := float64(v)
		return &f
	case int64:
		f := float64(v)
		return &f
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return nil
		}
		return &f
	case string:
		return parseString(v)
	default:
		return nil
	}
}

// Supplied reporta si la entrada cruda trae un valor explícito.
// Un string en blanco cuenta como ausente, no como valor.
func Supplied(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(v) != ""
	default:
		return true
	}
}

func parseString(raw string) *float64 {
	// Primero fuera todo espacio (incluye NBSP, que suele venir pegado a "R$").
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, raw)

	cleaned = strings.TrimPrefix(cleaned, "R$")
	cleaned = strings.TrimPrefix(cleaned, "$")

	lastComma := strings.LastIndex(cleaned, ",")
	lastDot := strings.LastIndex(cleaned, ".")

	switch {
	case lastComma >= 0 && lastDot >= 0:
		// Los dos separadores presentes: el que aparece último es el decimal,
		// el otro es agrupación de miles y se descarta.
		if lastComma > lastDot {
			cleaned = strings.ReplaceAll(cleaned, ".", "")
			cleaned = strings.ReplaceAll(cleaned, ",", ".")
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	case lastComma >= 0:
		// Solo coma: es el separador decimal.
		cleaned = strings.ReplaceAll(cleaned, ",", ".")
	case strings.Count(cleaned, ".") > 1:
		// Varios puntos: todos menos el último son miles.
		cleaned = strings.ReplaceAll(cleaned[:lastDot], ".", "") + cleaned[lastDot:]
	}

	// Lo que no sea dígito, punto o signo se descarta (restos de símbolos).
	var builder strings.Builder
	for _, r := range cleaned {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			builder.WriteRune(r)
		}
	}
	cleaned = builder.String()

	switch cleaned {
	case "", ".", "-", "-.":
		return nil
	}

	number, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return nil
	}
	return &number
}
