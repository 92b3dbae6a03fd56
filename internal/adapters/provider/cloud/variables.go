package cloud

import (
	"math"
	"strconv"
	"strings"

	"wa-gateway/internal/domain"
)

func parameter(v domain.TemplateVariable) parameterObj {
	switch v.Kind {
	case domain.VariableCurrency:
		return parameterObj{Type: "currency", Currency: currency(v.Body)}
	case domain.VariableDateTime:
		return parameterObj{Type: "date_time", DateTime: dateTime(v.Body)}
	default:
		body := v.Body
		return parameterObj{Type: "text", Text: &body}
	}
}

// currency parses "<CODE>:<amount>" with a finite decimal amount. Anything
// else becomes zero reais.
func currency(s string) *currencyObj {
	code, raw, ok := strings.Cut(s, ":")
	if ok {
		if amount, ok := decimalAmount(raw); ok {
			return &currencyObj{
				FallbackValue: "$" + raw,
				Code:          code,
				Amount1000:    int64(math.Round(amount * 1000)),
			}
		}
	}
	return &currencyObj{FallbackValue: "R$ 0.00", Code: "BRL", Amount1000: 0}
}

// decimalAmount rejects NaN, infinities, hex floats and any amount whose
// thousandths overflow int64.
func decimalAmount(raw string) (float64, bool) {
	if strings.ContainsAny(raw, "xX_") {
		return 0, false
	}
	amount, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return 0, false
	}
	if math.Abs(amount*1000) >= math.MaxInt64 {
		return 0, false
	}
	return amount, true
}

// dateTime reads positional fields of "YYYY-MM-DD[THH:MM...]". Unreadable
// fields are zero; the date needs at least 10 bytes, hour and minute 16.
func dateTime(s string) *dateTimeObj {
	dt := &dateTimeObj{FallbackValue: s, Calendar: "GREGORIAN"}
	if len(s) < 10 {
		return dt
	}
	dt.Year = field(s, 0, 4)
	dt.Month = field(s, 5, 7)
	dt.DayOfMonth = field(s, 8, 10)
	if len(s) >= 16 {
		dt.Hour = field(s, 11, 13)
		dt.Minute = field(s, 14, 16)
	}
	return dt
}

func field(s string, from, to int) int {
	if len(s) < to {
		return 0
	}
	n, err := strconv.Atoi(s[from:to])
	if err != nil {
		return 0
	}
	return n
}
