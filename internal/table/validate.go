package table

import (
	_ "embed"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

//go:embed schema.cue
var schemaSource []byte

// validate checks a decoded YAML document against the embedded table
// schema.
func validate(doc any) error {
	ctx := cuecontext.New()
	schema := ctx.CompileBytes(schemaSource)
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Table"))
	if err := def.Err(); err != nil {
		return fmt.Errorf("lookup schema: %w", err)
	}
	val := ctx.Encode(doc)
	if err := val.Err(); err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	unified := def.Unify(val)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return err
	}
	return nil
}
