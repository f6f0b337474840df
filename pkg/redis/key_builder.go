package redis

import "strings"

// KeyBuilder builds Redis keys according to the platform naming convention:
// namespace:context:entity[:attribute].
type KeyBuilder struct {
	namespace string
	context   string
}

// NewKeyBuilder creates a new KeyBuilder with the given namespace and context.
func NewKeyBuilder(namespace, context string) *KeyBuilder {
	return &KeyBuilder{
		namespace: strings.ToLower(namespace),
		context:   strings.ToLower(context),
	}
}

// Build creates a Redis key following the naming convention.
func (kb *KeyBuilder) Build(entity, attribute string) string {
	parts := []string{
		kb.namespace,
		kb.context,
		strings.ToLower(entity),
	}
	if attribute != "" {
		parts = append(parts, strings.ToLower(attribute))
	}
	return strings.Join(parts, ":")
}

// BuildPattern creates a Redis key pattern for scanning.
func (kb *KeyBuilder) BuildPattern(entity, pattern string) string {
	if pattern == "" {
		pattern = "*"
	}
	return strings.Join([]string{kb.namespace, kb.context, strings.ToLower(entity), pattern}, ":")
}
