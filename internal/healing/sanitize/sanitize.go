// Package sanitize strips secrets and oversized payloads from error context
// before anything is logged or sent to the diagnostic collaborator.
package sanitize

import (
	"fmt"
	"regexp"
	"strings"
)

// Redacted replaces any value that looks like a credential.
const Redacted = "[REDACTED]"

// MaxStringLen is the longest string value kept verbatim; longer values are
// truncated with a marker suffix.
const MaxStringLen = 200

// MaxArrayLen is the longest array kept verbatim; longer arrays collapse to
// a length summary.
const MaxArrayLen = 10

const truncationMarker = "... [truncated]"

// maxDepth bounds recursion over nested maps/slices so cyclic or absurdly
// deep input cannot blow the stack.
const maxDepth = 8

// sensitiveKeyTerms match case-insensitively as substrings of key names.
var sensitiveKeyTerms = []string{
	"password",
	"token",
	"secret",
	"apikey",
	"accesstoken",
	"refreshtoken",
	"sessionid",
	"creditcard",
	"ssn",
	"auth",
	"authorization",
}

var (
	jwtPattern    = regexp.MustCompile(`^[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+$`)
	apiKeyPattern = regexp.MustCompile(`^(sk_|pk_|api_)[A-Za-z0-9_]{20,}$`)
	bareTokenPat  = regexp.MustCompile(`^[A-Za-z0-9]{41,}$`)
)

// Map sanitizes a context map. It never panics: malformed input degrades to
// a best-effort partial redaction so the error path is never blocked.
func Map(in map[string]any) (out map[string]any) {
	defer func() {
		if r := recover(); r != nil {
			out = map[string]any{"sanitizer": "partial redaction, input not fully walkable"}
		}
	}()
	if in == nil {
		return nil
	}
	return sanitizeMap(in, 0)
}

// Value sanitizes a single value of arbitrary shape.
func Value(v any) (out any) {
	defer func() {
		if r := recover(); r != nil {
			out = Redacted
		}
	}()
	return sanitizeValue(v, 0)
}

// Args sanitizes an argument list destined for logging.
func Args(args []any) []any {
	out := make([]any, len(args))
	for i, a := range args {
		out[i] = Value(a)
	}
	return out
}

// String applies the credential-shape and length rules to one string.
func String(s string) string {
	if looksLikeCredential(s) {
		return Redacted
	}
	if len(s) > MaxStringLen {
		return s[:MaxStringLen] + truncationMarker
	}
	return s
}

func sanitizeMap(in map[string]any, depth int) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		if isSensitiveKey(k) {
			out[k] = Redacted
			continue
		}
		out[k] = sanitizeValue(v, depth+1)
	}
	return out
}

func sanitizeValue(v any, depth int) any {
	if depth > maxDepth {
		return Redacted
	}
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		return String(val)
	case map[string]any:
		return sanitizeMap(val, depth)
	case []any:
		if len(val) > MaxArrayLen {
			return fmt.Sprintf("[array of %d items]", len(val))
		}
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = sanitizeValue(item, depth+1)
		}
		return out
	case []string:
		if len(val) > MaxArrayLen {
			return fmt.Sprintf("[array of %d items]", len(val))
		}
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = String(item)
		}
		return out
	case error:
		return String(val.Error())
	default:
		// Numbers, bools and anything else pass through untouched.
		return val
	}
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, term := range sensitiveKeyTerms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}

func looksLikeCredential(s string) bool {
	if jwtPattern.MatchString(s) {
		return true
	}
	if apiKeyPattern.MatchString(s) {
		return true
	}
	return bareTokenPat.MatchString(s)
}
