package version

import (
	"fmt"
	"regexp"
	"strings"
)

// Constraint is a predicate over versions.
type Constraint interface {
	Allows(v Version) bool
	IsAny() bool
	IsEmpty() bool
	String() string
}

type anyConstraint struct{}

// Any returns the constraint that allows every version.
func Any() Constraint { return anyConstraint{} }

func (anyConstraint) Allows(Version) bool { return true }
func (anyConstraint) IsAny() bool         { return true }
func (anyConstraint) IsEmpty() bool       { return false }
func (anyConstraint) String() string      { return "*" }

type emptyConstraint struct{}

// Empty returns the constraint that allows nothing.
func Empty() Constraint { return emptyConstraint{} }

func (emptyConstraint) Allows(Version) bool { return false }
func (emptyConstraint) IsAny() bool         { return false }
func (emptyConstraint) IsEmpty() bool       { return true }
func (emptyConstraint) String() string      { return "<empty>" }

// Range is an interval of versions. A nil bound is unbounded.
type Range struct {
	Min        *Version
	Max        *Version
	IncludeMin bool
	IncludeMax bool
}

// Exact returns the range containing only v.
func Exact(v Version) Range {
	return Range{Min: &v, Max: &v, IncludeMin: true, IncludeMax: true}
}

func (r Range) Allows(v Version) bool {
	if r.Min != nil {
		c := v.Compare(*r.Min)
		if c < 0 || (c == 0 && !r.IncludeMin) {
			return false
		}
	}
	if r.Max != nil {
		c := v.Compare(*r.Max)
		if c > 0 || (c == 0 && !r.IncludeMax) {
			return false
		}
	}
	return true
}

func (r Range) IsAny() bool {
	return r.Min == nil && r.Max == nil
}

func (r Range) IsEmpty() bool {
	if r.Min == nil || r.Max == nil {
		return false
	}
	c := r.Min.Compare(*r.Max)
	return c > 0 || (c == 0 && !(r.IncludeMin && r.IncludeMax))
}

// IsExact reports whether r pins a single version.
func (r Range) IsExact() bool {
	return r.Min != nil && r.Max != nil && r.IncludeMin && r.IncludeMax && r.Min.Equal(*r.Max)
}

// Intersect narrows r by o.
func (r Range) Intersect(o Range) Range {
	out := r
	if o.Min != nil {
		if out.Min == nil {
			out.Min, out.IncludeMin = o.Min, o.IncludeMin
		} else if c := o.Min.Compare(*out.Min); c > 0 {
			out.Min, out.IncludeMin = o.Min, o.IncludeMin
		} else if c == 0 {
			out.IncludeMin = out.IncludeMin && o.IncludeMin
		}
	}
	if o.Max != nil {
		if out.Max == nil {
			out.Max, out.IncludeMax = o.Max, o.IncludeMax
		} else if c := o.Max.Compare(*out.Max); c < 0 {
			out.Max, out.IncludeMax = o.Max, o.IncludeMax
		} else if c == 0 {
			out.IncludeMax = out.IncludeMax && o.IncludeMax
		}
	}
	return out
}

func (r Range) String() string {
	if r.IsAny() {
		return "*"
	}
	if r.IsExact() {
		return "==" + r.Min.String()
	}
	var parts []string
	if r.Min != nil {
		op := ">"
		if r.IncludeMin {
			op = ">="
		}
		parts = append(parts, op+r.Min.String())
	}
	if r.Max != nil {
		op := "<"
		if r.IncludeMax {
			op = "<="
		}
		parts = append(parts, op+r.Max.String())
	}
	return strings.Join(parts, ",")
}

// Exclusion allows everything its inner constraint rejects.
type Exclusion struct {
	Excluded Constraint
}

func (e Exclusion) Allows(v Version) bool { return !e.Excluded.Allows(v) }
func (e Exclusion) IsAny() bool           { return e.Excluded.IsEmpty() }
func (e Exclusion) IsEmpty() bool         { return e.Excluded.IsAny() }

func (e Exclusion) String() string {
	if r, ok := e.Excluded.(Range); ok && r.IsExact() {
		return "!=" + r.Min.String()
	}
	if w, ok := e.Excluded.(wildcard); ok {
		return "!=" + w.text
	}
	return "!(" + e.Excluded.String() + ")"
}

// wildcard is a range written as "1.2.*"; it keeps the written form for
// String.
type wildcard struct {
	Range
	text string
}

func (w wildcard) String() string { return "==" + w.text }

// Union allows a version when any member does.
type Union []Constraint

func (u Union) Allows(v Version) bool {
	for _, c := range u {
		if c.Allows(v) {
			return true
		}
	}
	return false
}

func (u Union) IsAny() bool {
	for _, c := range u {
		if c.IsAny() {
			return true
		}
	}
	return false
}

func (u Union) IsEmpty() bool {
	for _, c := range u {
		if !c.IsEmpty() {
			return false
		}
	}
	return true
}

func (u Union) String() string {
	parts := make([]string, len(u))
	for i, c := range u {
		parts[i] = c.String()
	}
	return strings.Join(parts, " || ")
}

// Intersection allows a version when every member does.
type Intersection []Constraint

func (in Intersection) Allows(v Version) bool {
	for _, c := range in {
		if !c.Allows(v) {
			return false
		}
	}
	return true
}

func (in Intersection) IsAny() bool {
	for _, c := range in {
		if !c.IsAny() {
			return false
		}
	}
	return true
}

func (in Intersection) IsEmpty() bool {
	for _, c := range in {
		if c.IsEmpty() {
			return true
		}
	}
	return false
}

func (in Intersection) String() string {
	parts := make([]string, len(in))
	for i, c := range in {
		parts[i] = c.String()
	}
	return strings.Join(parts, ",")
}

// HasPrereleaseBound reports whether c is bounded on either side by an
// unstable version, which means the author asked for pre-releases.
func HasPrereleaseBound(c Constraint) bool {
	switch c := c.(type) {
	case Range:
		return (c.Min != nil && c.Min.IsPrerelease()) || (c.Max != nil && c.Max.IsPrerelease())
	case wildcard:
		return HasPrereleaseBound(c.Range)
	case Intersection:
		for _, member := range c {
			if HasPrereleaseBound(member) {
				return true
			}
		}
	}
	return false
}

var (
	orSplit      = regexp.MustCompile(`\s*\|\|?\s*`)
	singleRegexp = regexp.MustCompile(`^(~=|===|==|!=|>=|<=|>|<|~|\^|=)?\s*(\S+)$`)
	operatorOnly = regexp.MustCompile(`^(~=|===|==|!=|>=|<=|>|<|~|\^|=)$`)
)

// ParseConstraint parses constraints such as "*", ">=1.0,<2.0", "^1.2",
// "~=2.1", "1.4.*", "!=1.5" or ">=1 || <0.5".
func ParseConstraint(s string) (Constraint, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "*" {
		return Any(), nil
	}

	parts := orSplit.Split(s, -1)
	if len(parts) == 1 {
		return parseConjunction(parts[0])
	}

	var union Union
	for _, part := range parts {
		c, err := parseConjunction(part)
		if err != nil {
			return nil, err
		}
		if c.IsAny() {
			return Any(), nil
		}
		union = append(union, c)
	}
	return union, nil
}

// MustParseConstraint is like ParseConstraint but panics on invalid input.
func MustParseConstraint(s string) Constraint {
	c, err := ParseConstraint(s)
	if err != nil {
		panic(err)
	}
	return c
}

func parseConjunction(s string) (Constraint, error) {
	var tokens []string
	for _, piece := range strings.Split(s, ",") {
		pending := ""
		for _, field := range strings.Fields(piece) {
			if operatorOnly.MatchString(field) {
				pending += field
				continue
			}
			tokens = append(tokens, pending+field)
			pending = ""
		}
		if pending != "" {
			return nil, fmt.Errorf("%w: dangling operator in %q", ErrInvalid, s)
		}
	}
	switch len(tokens) {
	case 0:
		return Any(), nil
	case 1:
		return parseSingle(tokens[0])
	}

	var (
		rng    = Range{}
		others Intersection
	)
	for _, tok := range tokens {
		c, err := parseSingle(tok)
		if err != nil {
			return nil, err
		}
		switch c := c.(type) {
		case anyConstraint:
		case Range:
			rng = rng.Intersect(c)
		case wildcard:
			rng = rng.Intersect(c.Range)
		default:
			others = append(others, c)
		}
	}

	if rng.IsEmpty() {
		return Empty(), nil
	}
	if len(others) == 0 {
		if rng.IsAny() {
			return Any(), nil
		}
		return rng, nil
	}
	if !rng.IsAny() {
		others = append(Intersection{rng}, others...)
	}
	if len(others) == 1 {
		return others[0], nil
	}
	return others, nil
}

func parseSingle(tok string) (Constraint, error) {
	m := singleRegexp.FindStringSubmatch(tok)
	if m == nil {
		return nil, fmt.Errorf("%w: constraint %q", ErrInvalid, tok)
	}
	op, text := m[1], m[2]

	if text == "*" {
		if op == "!=" {
			return Empty(), nil
		}
		return Any(), nil
	}

	if strings.HasSuffix(text, ".*") {
		w, err := parseWildcard(text)
		if err != nil {
			return nil, err
		}
		switch op {
		case "", "=", "==", "===":
			return w, nil
		case "!=":
			return Exclusion{Excluded: w}, nil
		default:
			return nil, fmt.Errorf("%w: wildcard with %q in %q", ErrInvalid, op, tok)
		}
	}

	v, err := Parse(text)
	if err != nil {
		return nil, err
	}

	switch op {
	case "", "=", "==", "===":
		return Exact(v), nil
	case "!=":
		return Exclusion{Excluded: Exact(v)}, nil
	case ">=":
		return Range{Min: &v, IncludeMin: true}, nil
	case ">":
		return Range{Min: &v}, nil
	case "<=":
		return Range{Max: &v, IncludeMax: true}, nil
	case "<":
		return Range{Max: &v}, nil
	case "^":
		upper := v.NextBreaking()
		return Range{Min: &v, IncludeMin: true, Max: &upper}, nil
	case "~":
		var upper Version
		if v.Precision() == 1 {
			upper = v.NextMajor()
		} else {
			upper = v.NextMinor()
		}
		return Range{Min: &v, IncludeMin: true, Max: &upper}, nil
	case "~=":
		if v.Precision() < 2 {
			return nil, fmt.Errorf("%w: %q needs at least two release components", ErrInvalid, tok)
		}
		prefix := append([]int(nil), v.release[:len(v.release)-1]...)
		prefix[len(prefix)-1]++
		upper := v.withRelease(prefix...)
		return Range{Min: &v, IncludeMin: true, Max: &upper}, nil
	}
	return nil, fmt.Errorf("%w: operator %q", ErrInvalid, op)
}

func parseWildcard(text string) (wildcard, error) {
	base, err := Parse(strings.TrimSuffix(text, ".*"))
	if err != nil {
		return wildcard{}, err
	}
	release := append([]int(nil), base.release...)
	release[len(release)-1]++
	upper := base.withRelease(release...)
	return wildcard{
		Range: Range{Min: &base, IncludeMin: true, Max: &upper},
		text:  text,
	}, nil
}
