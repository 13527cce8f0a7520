package xid

import (
	"fmt"

	"github.com/google/uuid"
)

// New returns a prefixed identifier. Version 7 UUIDs keep ids roughly ordered
// by creation time.
func New(prefix string) string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	if prefix == "" {
		return id.String()
	}
	return fmt.Sprintf("%s-%s", prefix, id.String())
}
