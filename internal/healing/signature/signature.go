// Package signature derives the stable fingerprint used as the
// learned-pattern cache key. It is a grouping key, not a security hash.
package signature

import (
	"strings"

	"github.com/remedyops/healer/internal/core/domain"
)

// messagePrefixLen is how much of the message participates in the key.
// Enough to separate distinct failures, short enough that variable tails
// (ids, addresses, timestamps) do not fragment the cache.
const messagePrefixLen = 50

// Generate returns the deterministic signature for an error event. Two
// events with the same category, source and message prefix always map to
// the same signature.
func Generate(event domain.ErrorEvent) string {
	msg := event.Message
	if len(msg) > messagePrefixLen {
		msg = msg[:messagePrefixLen]
	}
	raw := string(event.Category) + "_" + event.Source + "_" + msg
	return fold(raw)
}

// fold replaces every non-alphanumeric rune with '_' so the signature is
// safe as a storage key regardless of what the message contained.
func fold(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
