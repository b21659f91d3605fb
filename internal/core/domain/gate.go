package domain

import "strings"

// DefaultMaxLimit is the row bound applied when callers do not configure one.
const DefaultMaxLimit = 100

// Guard is the SQL safety gate for machine-generated queries. It accepts only
// a single, read-only, row-bounded SELECT and returns the (possibly
// limit-rewritten) query text, or a *RejectionError describing why the input
// was refused.
//
// The gate is a pure function of its arguments: no retained state, safe for
// concurrent use. Validation is layered — a lexical prefilter rejects
// high-risk text before the dialect parser delivers the authoritative
// statement-kind verdict.
func Guard(sql, dialect string, maxLimit int) (string, error) {
	if maxLimit <= 0 {
		maxLimit = DefaultMaxLimit
	}

	trimmed := strings.TrimSpace(sql)
	if trimmed == "" {
		return "", rejected(ReasonEmptyInput, "")
	}

	if id, matched := matchForbidden(strings.ToLower(trimmed)); matched {
		return "", rejected(ReasonForbiddenPattern, id)
	}

	tree, sel, err := parseSingleSelect(trimmed, dialect)
	if err != nil {
		return "", err
	}

	return enforceLimit(trimmed, tree, sel, maxLimit), nil
}
