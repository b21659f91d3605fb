package domain

import "regexp"

// forbiddenPattern is a lexical signature checked before the SQL is parsed.
// The prefilter exists to reject dangerous text cheaply and to catch
// constructs a grammar-only check would accept (e.g. "ON 1=1").
type forbiddenPattern struct {
	id string
	re *regexp.Regexp
}

// Ordered: the first match wins and its id is reported.
var forbiddenPatterns = []forbiddenPattern{
	{"multi_statement", regexp.MustCompile(`;\s*\S`)},
	{"dml_ddl_keyword", regexp.MustCompile(`\b(insert|update|delete|merge|create|alter|drop|truncate|grant|revoke)\b`)},
	{"transaction_control", regexp.MustCompile(`\b(begin|commit|rollback|savepoint)\b`)},
	{"lock_keyword", regexp.MustCompile(`\block\b`)},
	{"always_true_predicate", regexp.MustCompile(`\bon\s+1\s*=\s*1\b`)},
	{"cross_join", regexp.MustCompile(`\bcross\s+join\b`)},
}

// matchForbidden tests the lower-cased SQL against every pattern in order
// and returns the id of the first match.
func matchForbidden(lowered string) (string, bool) {
	for _, p := range forbiddenPatterns {
		if p.re.MatchString(lowered) {
			return p.id, true
		}
	}
	return "", false
}
