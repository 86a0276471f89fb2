package health

import "context"

// EnginePinger checks engine availability.
type EnginePinger interface {
	Ping(ctx context.Context) error
}

// IndexChecker reports managed indexes missing from the engine.
type IndexChecker interface {
	MissingIndexes(ctx context.Context) ([]string, error)
}
