package domain

import (
	"reflect"

	"github.com/shopspring/decimal"
)

// LenientEqual reports whether two row sets are equivalent under a comparison
// deliberately weaker than literal equality: column names and column order
// are never considered (generated SQL cannot be expected to name or order
// columns like the reference), row order is ignored when orderIndependent is
// set, and numbers match after rounding to the given precision.
//
// It never fails: any pair of inputs, however shaped, yields a verdict. Two
// empty sets are equal; mismatched shapes are a false verdict, not an error.
func LenientEqual(expected, actual [][]any, precision int32, orderIndependent bool) bool {
	exp := NormalizeRows(expected, precision, orderIndependent)
	act := NormalizeRows(actual, precision, orderIndependent)

	// A 1x1 aggregate is judged on the single value alone.
	if isSingleScalar(exp) && isSingleScalar(act) {
		return valuesEqual(exp[0][0], act[0][0])
	}

	if len(exp) != len(act) {
		return false
	}
	for i := range exp {
		if len(exp[i]) != len(act[i]) {
			return false
		}
		for j := range exp[i] {
			if !valuesEqual(exp[i][j], act[i][j]) {
				return false
			}
		}
	}
	return true
}

func isSingleScalar(rows [][]any) bool {
	return len(rows) == 1 && len(rows[0]) == 1
}

// valuesEqual compares two normalized values exactly. Decimals compare by
// numeric value so differing internal exponents never matter.
func valuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	da, aok := a.(decimal.Decimal)
	db, bok := b.(decimal.Decimal)
	if aok || bok {
		if !aok || !bok {
			return false
		}
		return da.Equal(db)
	}
	return reflect.DeepEqual(a, b)
}
