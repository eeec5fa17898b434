// Package idgen generates short, human-readable identifiers for simulation
// entities. Adapted from pkg/utils/container_id.go's prefix+short-UUID
// scheme.
package idgen

import (
	"strings"

	"github.com/google/uuid"
)

// ModuleInstanceID builds an id for a module instance: {typeSymbol}-{n}-{short}.
func ModuleInstanceID(typeSymbol string, n int) string {
	return typeSymbol + "-" + itoa(n) + "-" + shortUUID()
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

func shortUUID() string {
	id := uuid.New()
	return strings.ReplaceAll(id.String(), "-", "")[:8]
}
