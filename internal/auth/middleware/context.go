package auth

import "context"

type ctxKey struct{}

var ctxKeySub ctxKey

// WithSubject stores the authenticated user id (the JWT sub claim) on
// the context. Handlers read it back to attribute submissions, reviews,
// and grade actions to the caller.
func WithSubject(ctx context.Context, sub string) context.Context {
	return context.WithValue(ctx, ctxKeySub, sub)
}

// SubjectFromContext returns the authenticated user id, or "" outside
// the JWT middleware.
func SubjectFromContext(ctx context.Context) string {
	if v := ctx.Value(ctxKeySub); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
