package domain

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultPrecision is the fractional-digit count numeric values are rounded
// to before comparison.
const DefaultPrecision = 6

// numericText matches sign-digits[.digits][exponent], the only text forms
// admitted onto the decimal path.
var numericText = regexp.MustCompile(`^[-+]?(?:\d+(?:\.\d*)?|\.\d+)(?:[eE][-+]?\d+)?$`)

// NormalizeValue canonicalizes one scalar for lenient comparison. It is total
// and deterministic: a value that fits no rule passes through unchanged.
//
// Numbers of every width — and text that looks like a number — are routed
// through fixed-precision decimal with round-half-to-even, so differing
// binary-float rounding between a reference aggregate and a generated one
// does not produce a false mismatch. Floats are rendered through their
// shortest round-trip text first to avoid baking binary artifacts into the
// decimal form.
func NormalizeValue(v any, precision int32) any {
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return nil
		}
		if numericText.MatchString(s) {
			if d, err := decimal.NewFromString(s); err == nil {
				return d.RoundBank(precision)
			}
		}
		return s
	case bool:
		return x
	case int:
		return decimal.NewFromInt(int64(x)).RoundBank(precision)
	case int8:
		return decimal.NewFromInt(int64(x)).RoundBank(precision)
	case int16:
		return decimal.NewFromInt(int64(x)).RoundBank(precision)
	case int32:
		return decimal.NewFromInt(int64(x)).RoundBank(precision)
	case int64:
		return decimal.NewFromInt(x).RoundBank(precision)
	case uint:
		return decimal.NewFromUint64(uint64(x)).RoundBank(precision)
	case uint8:
		return decimal.NewFromUint64(uint64(x)).RoundBank(precision)
	case uint16:
		return decimal.NewFromUint64(uint64(x)).RoundBank(precision)
	case uint32:
		return decimal.NewFromUint64(uint64(x)).RoundBank(precision)
	case uint64:
		return decimal.NewFromUint64(x).RoundBank(precision)
	case float32:
		return decimalFromFloatText(strconv.FormatFloat(float64(x), 'g', -1, 32), v, precision)
	case float64:
		return decimalFromFloatText(strconv.FormatFloat(x, 'g', -1, 64), v, precision)
	case decimal.Decimal:
		return x.RoundBank(precision)
	default:
		return v
	}
}

// decimalFromFloatText converts a shortest round-trip float rendering to a
// rounded decimal, falling back to the original value if parsing fails.
func decimalFromFloatText(s string, orig any, precision int32) any {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return orig
	}
	return d.RoundBank(precision)
}

// NormalizeRows applies NormalizeValue across every tuple and, when
// orderIndependent is set, sorts the result by a key derived from each
// tuple's values (nil sorts as empty text). The input is never mutated.
func NormalizeRows(rows [][]any, precision int32, orderIndependent bool) [][]any {
	norm := make([][]any, len(rows))
	for i, row := range rows {
		n := make([]any, len(row))
		for j, v := range row {
			n[j] = NormalizeValue(v, precision)
		}
		norm[i] = n
	}

	if orderIndependent {
		sort.SliceStable(norm, func(i, j int) bool {
			return lessKeys(rowKey(norm[i]), rowKey(norm[j]))
		})
	}

	return norm
}

// rowKey builds the comparison key for one normalized tuple.
func rowKey(row []any) []string {
	key := make([]string, len(row))
	for i, v := range row {
		key[i] = keyText(v)
	}
	return key
}

func keyText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case decimal.Decimal:
		return x.String()
	default:
		return fmt.Sprint(v)
	}
}

func lessKeys(a, b []string) bool {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}
