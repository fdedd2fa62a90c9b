package parser

import (
	"fmt"
	"strings"

	"github.com/arolang/aro/internal/lang"
)

// ParseError reports malformed source with its exact location and a
// description of what the parser expected there.
type ParseError struct {
	Pos      lang.Position
	Expected string
	Got      string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: expected %s, got %s", e.Pos, e.Expected, e.Got)
}

// StructuralError reports every feature set that violates a program-level
// invariant: uniqueness of names and lifecycle cardinality.
type StructuralError struct {
	Problems []string
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("program structure invalid:\n- %s", strings.Join(e.Problems, "\n- "))
}
