package schema

import (
	"bytes"
	"fmt"

	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/formatter"
)

// SourceName is the name validation errors report for the generated SDL.
const SourceName = "portal.graphql"

// Load validates the rendered SDL of s with gqlparser and returns the
// parsed schema used to validate queries.
func Load(s *Schema) (*ast.Schema, error) {
	parsed, err := gqlparser.LoadSchema(&ast.Source{Name: SourceName, Input: Render(s)})
	if err != nil {
		return nil, fmt.Errorf("schema: %w", err)
	}
	return parsed, nil
}

// Format prints a parsed schema in canonical SDL, leaving out the types
// every GraphQL implementation provides.
func Format(parsed *ast.Schema) string {
	var buf bytes.Buffer
	formatter.NewFormatter(&buf).FormatSchema(parsed)
	return buf.String()
}
