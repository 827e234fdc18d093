package lifecycle

import "fmt"

// NotFoundError signals that a referenced client, membership or contract
// does not exist.
type NotFoundError struct {
	Entity string
	ID     int
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

// ValidationError signals malformed or out-of-range input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ConflictError signals a precondition violated against current aggregate
// state. The rejected transition leaves all aggregates unchanged.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

func notFound(entity string, id int) error {
	return &NotFoundError{Entity: entity, ID: id}
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

func conflict(message string) error {
	return &ConflictError{Message: message}
}
