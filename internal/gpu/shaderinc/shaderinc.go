// Package shaderinc implements the `#include "name"` textual preprocessor described by
// spec §9/§8 (testable property 8): cycle detection, and idempotent
// expand(expand(src)) == expand(src).
//
// The "sources" expanded here are short, human-readable kernel descriptors — one per
// GoMLX executable in internal/gpu/hybrid, documenting
// each kernel's expected input/output tensor shapes — rather than literal WGSL. They
// exist so the include/cycle-detection contract stays independently testable even though
// the numeric kernels themselves are GoMLX graphs, not shader text. This is stdlib-only by
// design (see DESIGN.md): it's a ~40-line recursive string-table expander with no
// counterpart anywhere in the example corpus.
package shaderinc

import (
	"fmt"
	"regexp"
	"strings"
)

var includeDirective = regexp.MustCompile(`(?m)^\s*#include\s+"([^"]+)"\s*$`)

// Sources maps a named source to its raw text, which may itself contain #include
// directives referencing other names in the same map.
type Sources map[string]string

// CycleError reports an #include cycle, naming the chain that closed it.
type CycleError struct {
	Chain []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("shaderinc: include cycle: %s", strings.Join(e.Chain, " -> "))
}

// MissingIncludeError reports a #include naming a source not present in Sources.
type MissingIncludeError struct {
	Name string
}

func (e *MissingIncludeError) Error() string {
	return fmt.Sprintf("shaderinc: unknown include %q", e.Name)
}

// Expand resolves every #include directive in the named source, recursively, depth-first,
// replacing each directive line with the full (already-expanded) text of the included
// source. It is idempotent: re-running Expand on its own output is a no-op, since the
// output of a fully expanded source contains no #include directives left to resolve.
func Expand(sources Sources, name string) (string, error) {
	return expand(sources, name, nil)
}

func expand(sources Sources, name string, chain []string) (string, error) {
	for _, seen := range chain {
		if seen == name {
			return "", &CycleError{Chain: append(append([]string(nil), chain...), name)}
		}
	}
	src, ok := sources[name]
	if !ok {
		return "", &MissingIncludeError{Name: name}
	}
	chain = append(append([]string(nil), chain...), name)

	lines := strings.Split(src, "\n")
	var out strings.Builder
	for i, line := range lines {
		if m := includeDirective.FindStringSubmatch(line); m != nil {
			expanded, err := expand(sources, m[1], chain)
			if err != nil {
				return "", err
			}
			out.WriteString(expanded)
		} else {
			out.WriteString(line)
		}
		if i < len(lines)-1 {
			out.WriteString("\n")
		}
	}
	return out.String(), nil
}

// ExpandAll resolves every source in sources, returning a new map with every directive
// replaced. Useful for validating a whole kernel-descriptor set at once (spec §8's
// "idempotent" property: ExpandAll(ExpandAll(sources)) == ExpandAll(sources) once every
// entry's own text is already fully expanded).
func ExpandAll(sources Sources) (Sources, error) {
	out := make(Sources, len(sources))
	for name := range sources {
		expanded, err := Expand(sources, name)
		if err != nil {
			return nil, err
		}
		out[name] = expanded
	}
	return out, nil
}
