package cache

import (
	"fmt"
	"strings"
)

// GenerateKey creates a cache key with prefix and ID.
func GenerateKey(prefix string, id string) string {
	return fmt.Sprintf("%s:%s", prefix, id)
}

// SymbolKey builds the per-symbol key, upper-casing the ticker.
func SymbolKey(prefix, symbol string) string {
	return GenerateKey(prefix, strings.ToUpper(strings.TrimSpace(symbol)))
}

// BuildPattern creates a Redis pattern for key matching.
func BuildPattern(prefix string) string {
	return fmt.Sprintf("%s*", prefix)
}
