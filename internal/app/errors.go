package app

import "fmt"

// DomainError carries an HTTP status and a stable machine-readable code
// (CORRECTION_ACTIVE, NOT_ACTIVE, NO_VERSIONS, ...) through the service layer
// so handlers can map business conflicts without string matching.
type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}
