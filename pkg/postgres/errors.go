package postgres

import "fmt"

// ServerError is an error reported by the PostgreSQL server.
type ServerError struct {
	Severity string
	Code     string
	Message  string
	Detail   string
}

func (e *ServerError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s (%s): %s: %s", e.Severity, e.Code, e.Message, e.Detail)
	}
	return fmt.Sprintf("%s (%s): %s", e.Severity, e.Code, e.Message)
}

// serverErrorFromFields builds a ServerError from the tagged fields of an
// ErrorResponse or NoticeResponse message.
func serverErrorFromFields(fields map[byte]string) *ServerError {
	return &ServerError{
		Severity: fields['S'],
		Code:     fields['C'],
		Message:  fields['M'],
		Detail:   fields['D'],
	}
}
