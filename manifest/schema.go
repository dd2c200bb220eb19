package manifest

import (
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

const schemaSource = `
#Manifest: {
	log: {
		verbosity: int & >=-1 & <=5
		file:      string
	}
	engine: {
		"allow-stacking": bool
	}
	runtime: {
		"tier-threshold": int & >=0
	}
	trace: {
		sink:         "" | "memory" | "cbor" | "sqlite"
		path:         string
		"batch-size": int & >=0
		if sink == "cbor" || sink == "sqlite" {
			path: !=""
		}
	}
}
`

// cue values are not safe for concurrent use; schemaMu serializes
// validation.
var (
	schemaMu   sync.Mutex
	schemaOnce sync.Once
	cueCtx     *cue.Context
	schema     cue.Value
	schemaErr  error
)

func loadSchema() (*cue.Context, cue.Value, error) {
	schemaOnce.Do(func() {
		cueCtx = cuecontext.New()
		v := cueCtx.CompileString(schemaSource, cue.Filename("graft.cue"))
		if err := v.Err(); err != nil {
			schemaErr = fmt.Errorf("compiling schema: %w", err)
			return
		}
		schema = v.LookupPath(cue.ParsePath("#Manifest"))
	})
	return cueCtx, schema, schemaErr
}

// Validate checks m against the graft.toml schema.
func Validate(m *Manifest) error {
	schemaMu.Lock()
	defer schemaMu.Unlock()
	ctx, def, err := loadSchema()
	if err != nil {
		return err
	}
	v := ctx.Encode(m)
	if err := v.Err(); err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	if err := def.Unify(v).Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
