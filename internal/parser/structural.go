package parser

import (
	"fmt"

	"github.com/arolang/aro/internal/lang"
)

// BuildProgram assembles parsed feature sets from all loaded units into a
// Program and runs the structural pass. Load order is preserved.
func BuildProgram(sets []*lang.FeatureSet) (*lang.Program, error) {
	program := &lang.Program{FeatureSets: sets}
	if err := ValidateStructure(program); err != nil {
		return nil, err
	}
	return program, nil
}

// ValidateStructure enforces the program-level invariants: globally unique
// feature-set names, exactly one Start-Up unit, and at most one of each
// shutdown unit. All violations are reported together, naming every
// conflicting feature set.
func ValidateStructure(program *lang.Program) error {
	var problems []string

	seen := make(map[string]lang.Position)
	for _, fs := range program.FeatureSets {
		if first, ok := seen[fs.Name]; ok {
			problems = append(problems, fmt.Sprintf("feature set %q declared at %s conflicts with declaration at %s", fs.Name, fs.Pos, first))
			continue
		}
		seen[fs.Name] = fs.Pos
	}

	count := func(name string) []*lang.FeatureSet {
		var found []*lang.FeatureSet
		for _, fs := range program.FeatureSets {
			if fs.Name == name {
				found = append(found, fs)
			}
		}
		return found
	}

	starts := count(lang.StartUpName)
	switch len(starts) {
	case 0:
		problems = append(problems, fmt.Sprintf("no %q feature set declared; a program needs exactly one start point", lang.StartUpName))
	case 1:
		// ok
	default:
		for _, fs := range starts {
			problems = append(problems, fmt.Sprintf("extra %q feature set at %s; a program has exactly one start point", lang.StartUpName, fs.Pos))
		}
	}

	for _, name := range []string{lang.ShutDownName, lang.ShutDownErrorName} {
		if found := count(name); len(found) > 1 {
			for _, fs := range found {
				problems = append(problems, fmt.Sprintf("extra %q feature set at %s; a program has at most one", name, fs.Pos))
			}
		}
	}

	if len(problems) > 0 {
		return &StructuralError{Problems: problems}
	}
	return nil
}
