// Package generator produces the opaque IDs the bot mints itself.
// Reservation IDs come from the store; these are for everything else,
// currently the per-interaction request IDs that tie log lines together.
package generator

import (
	"github.com/google/uuid"
)

// Generator yields a fresh value of type T on every call.
type Generator[T any] interface {
	Next() (T, error)
}

// UUIDV4Generator produces UUIDv4 strings.
type UUIDV4Generator struct{}

func (g *UUIDV4Generator) Next() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

var _ Generator[string] = &UUIDV4Generator{}
