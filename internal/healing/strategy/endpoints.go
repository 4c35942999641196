package strategy

import "context"

type endpointCtxKey struct{}

// StaticEndpoints maps operation sources to secondary endpoint URLs and
// implements EndpointSwitcher by stashing the URL on the context, where the
// wrapped operation can pick it up.
type StaticEndpoints struct {
	secondaries map[string]string
}

// NewStaticEndpoints creates a switcher over a source -> URL map.
func NewStaticEndpoints(secondaries map[string]string) *StaticEndpoints {
	return &StaticEndpoints{secondaries: secondaries}
}

// Secondary returns a context carrying the secondary endpoint for source,
// or (ctx, false) when none is configured.
func (s *StaticEndpoints) Secondary(ctx context.Context, source string) (context.Context, bool) {
	url, ok := s.secondaries[source]
	if !ok || url == "" {
		return ctx, false
	}
	return context.WithValue(ctx, endpointCtxKey{}, url), true
}

// SecondaryEndpoint extracts the endpoint override placed on the context by
// SWITCH_API_ENDPOINT, for operations that support one.
func SecondaryEndpoint(ctx context.Context) (string, bool) {
	url, ok := ctx.Value(endpointCtxKey{}).(string)
	return url, ok
}
