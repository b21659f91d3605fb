package domain

import "fmt"

// RejectReason classifies why the safety gate refused a piece of SQL.
type RejectReason string

const (
	ReasonEmptyInput       RejectReason = "empty_input"
	ReasonForbiddenPattern RejectReason = "forbidden_pattern"
	ReasonParseFailure     RejectReason = "parse_failure"
	ReasonNonSelect        RejectReason = "non_select_statement"
)

// RejectionError is the typed verdict the gate returns instead of a SafeQuery.
// Detail carries the matched pattern id, the parser message, or the offending
// statement kind, depending on Reason.
type RejectionError struct {
	Reason RejectReason
	Detail string
}

func (e *RejectionError) Error() string {
	if e.Detail == "" {
		return string(e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Detail)
}

func rejected(reason RejectReason, detail string) error {
	return &RejectionError{Reason: reason, Detail: detail}
}
