package logging

import "context"

type contextKey int

const (
	decisionIDKey contextKey = iota
	decisionInfoKey
)

// WithDecisionID attaches an evaluation correlation ID to the context.
func WithDecisionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, decisionIDKey, id)
}

// GetDecisionID retrieves the evaluation correlation ID, if any.
func GetDecisionID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(decisionIDKey).(string)
	return id, ok
}

// WithDecisionInfo attaches decision fields to the context so that every
// log entry emitted during an evaluation carries them.
func WithDecisionInfo(ctx context.Context, info DecisionInfo) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, decisionInfoKey, info)
}

// GetDecisionInfo retrieves the decision fields, if any.
func GetDecisionInfo(ctx context.Context) (DecisionInfo, bool) {
	info, ok := ctx.Value(decisionInfoKey).(DecisionInfo)
	return info, ok
}
