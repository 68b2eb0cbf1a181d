package modulebox

import "context"

// Extractor turns the file at path into an ordered Result.
// The context carries tracing only; extraction is not cancellable.
type Extractor interface {
	Extract(ctx context.Context, path string) (Result, error)
}

// Store persists modules and their comments.
type Store interface {
	// --- Modules ---
	CreateModule(ctx context.Context, m Module) (Module, error)
	GetModule(ctx context.Context, id int64) (Module, error)
	ListModules(ctx context.Context, limit int) ([]Module, error)
	DeleteModule(ctx context.Context, id int64) error

	// --- Comments ---
	AddComment(ctx context.Context, moduleID int64, text string) (Comment, error)
	ListComments(ctx context.Context, moduleID int64) ([]Comment, error)

	// --- Lifecycle ---
	Init(ctx context.Context) error
	Close() error
}
