package search

import (
	_ "embed"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed request_schema.json
var requestSchemaJSON []byte

var (
	schemaOnce sync.Once
	schema     *gojsonschema.Schema
)

// checkRequestSchema validates a serialized request body against the
// embedded Search API request schema and returns human-readable problems.
// It is advisory: callers log the problems rather than failing, and any
// error loading or running the schema yields no problems at all.
func checkRequestSchema(payload []byte) []string {
	schemaOnce.Do(func() {
		loaded, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(requestSchemaJSON))
		if err != nil {
			// Leave schema nil; the check becomes a no-op.
			return
		}
		schema = loaded
	})
	if schema == nil {
		return nil
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(payload))
	if err != nil || result.Valid() {
		return nil
	}

	problems := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		problems = append(problems, desc.String())
	}
	return problems
}
