package app

import (
	"context"
	"fmt"
	"os"

	"github.com/arolang/aro/internal/ctxlog"
	"github.com/arolang/aro/internal/fsutil"
	"github.com/arolang/aro/internal/lang"
	"github.com/arolang/aro/internal/parser"
)

// loadProgram discovers, parses, and structurally validates the program
// sources at the given path.
func loadProgram(ctx context.Context, path string) (*lang.Program, error) {
	logger := ctxlog.FromContext(ctx)

	files, err := fsutil.FindSources(path)
	if err != nil {
		return nil, fmt.Errorf("failed to discover program sources: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no %s sources found under %s", fsutil.SourceExtension, path)
	}
	logger.Debug("Program sources discovered.", "count", len(files))

	var sets []*lang.FeatureSet
	for _, file := range files {
		src, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", file, err)
		}
		parsed, err := parser.ParseUnit(file, string(src))
		if err != nil {
			return nil, err
		}
		sets = append(sets, parsed...)
	}

	program, err := parser.BuildProgram(sets)
	if err != nil {
		return nil, err
	}
	logger.Debug("Program loaded.", "featureSets", len(program.FeatureSets))
	return program, nil
}
