package cel

import (
	"path"
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/ext"
)

// NewOverlayEnvironment creates a CEL environment for deny-overlay
// conditions. It exposes:
//   - request variables: operation, collection, doc_id, object_path,
//     subject_id, role, authenticated, changed_fields
//   - custom functions: glob(pattern, value), path_owner(object_path)
func NewOverlayEnvironment() (*cel.Env, error) {
	return cel.NewEnv(
		// Standard extensions
		ext.Strings(),
		ext.Sets(),

		cel.Variable("operation", cel.StringType),
		cel.Variable("collection", cel.StringType),
		cel.Variable("doc_id", cel.StringType),
		cel.Variable("object_path", cel.StringType),
		cel.Variable("subject_id", cel.StringType),
		cel.Variable("role", cel.StringType),
		cel.Variable("authenticated", cel.BoolType),
		cel.Variable("changed_fields", cel.ListType(cel.StringType)),

		// glob: shell-style pattern matching for ids and paths.
		cel.Function("glob",
			cel.Overload("glob_string_string",
				[]*cel.Type{cel.StringType, cel.StringType},
				cel.BoolType,
				cel.BinaryBinding(func(pattern, name ref.Val) ref.Val {
					p, ok := pattern.Value().(string)
					if !ok {
						return types.Bool(false)
					}
					n, ok := name.Value().(string)
					if !ok {
						return types.Bool(false)
					}
					matched, _ := path.Match(p, n)
					return types.Bool(matched)
				}),
			),
		),

		// path_owner: the owner segment of a governed object path.
		// Returns "" for ungoverned paths.
		cel.Function("path_owner",
			cel.Overload("path_owner_string",
				[]*cel.Type{cel.StringType},
				cel.StringType,
				cel.UnaryBinding(func(objectPath ref.Val) ref.Val {
					p, ok := objectPath.Value().(string)
					if !ok {
						return types.String("")
					}
					segments := strings.Split(p, "/")
					if len(segments) < 2 {
						return types.String("")
					}
					return types.String(segments[1])
				}),
			),
		),
	)
}
