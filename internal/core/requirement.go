package core

import (
	"fmt"
	"regexp"
	"strings"
)

var requirementRegexp = regexp.MustCompile(`^\s*([A-Za-z0-9](?:[A-Za-z0-9._-]*[A-Za-z0-9])?)\s*(?:\[([^\]]*)\])?\s*(.*)$`)

// ParseRequirement parses a Requires-Dist entry such as
// `requests[socks] (>=2.0,<3) ; python_version >= "3.8"`. Requirements
// guarded by an extra marker are optional.
func ParseRequirement(s string) (Dependency, error) {
	spec, markers, _ := strings.Cut(s, ";")
	m := requirementRegexp.FindStringSubmatch(spec)
	if m == nil {
		return Dependency{}, fmt.Errorf("invalid requirement %q", s)
	}

	constraint := strings.TrimSpace(m[3])
	if strings.HasPrefix(constraint, "@") {
		// direct reference
		constraint = ""
	}
	constraint = strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(constraint, "("), ")"))

	dep, err := NewDependency(m[1], constraint)
	if err != nil {
		return Dependency{}, err
	}
	for _, extra := range strings.Split(m[2], ",") {
		if extra = strings.TrimSpace(extra); extra != "" {
			dep.Extras = append(dep.Extras, extra)
		}
	}
	dep.Markers = strings.TrimSpace(markers)
	dep.Optional = strings.Contains(dep.Markers, "extra")
	return dep, nil
}
