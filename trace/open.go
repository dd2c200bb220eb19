package trace

import (
	"context"
	"fmt"

	"github.com/chazu/graft/manifest"
)

// Open creates the sink selected by the [trace] section. It returns a nil
// Tracer when tracing is off. path is the sink location already resolved
// against the manifest directory.
func Open(ctx context.Context, cfg manifest.Trace, path string) (Tracer, error) {
	switch cfg.Sink {
	case manifest.SinkNone:
		return nil, nil
	case manifest.SinkMemory:
		return NewMemory(0), nil
	case manifest.SinkCBOR:
		w, err := CreateCBOR(path)
		if err != nil {
			return nil, err
		}
		return w, nil
	case manifest.SinkSQLite:
		db, err := OpenSQLite(ctx, path, cfg.BatchSize)
		if err != nil {
			return nil, err
		}
		return db, nil
	default:
		return nil, fmt.Errorf("trace: unknown sink %q", cfg.Sink)
	}
}
