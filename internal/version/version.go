// Package version implements PEP 440 versions and the constraint syntax
// accepted in dependency declarations.
package version

import (
	"cmp"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var pattern = regexp.MustCompile(`(?i)^v?` +
	`(?:(?P<epoch>[0-9]+)!)?` +
	`(?P<release>[0-9]+(?:\.[0-9]+)*)` +
	`(?P<pre>[-_.]?(?P<pre_l>alpha|beta|preview|pre|rc|a|b|c)[-_.]?(?P<pre_n>[0-9]+)?)?` +
	`(?P<post>(?:-(?P<post_n1>[0-9]+))|(?:[-_.]?(?P<post_l>post|rev|r)[-_.]?(?P<post_n2>[0-9]+)?))?` +
	`(?P<dev>[-_.]?(?P<dev_l>dev)[-_.]?(?P<dev_n>[0-9]+)?)?` +
	`(?:\+(?P<local>[a-z0-9]+(?:[-_.][a-z0-9]+)*))?$`)

// ErrInvalid is wrapped by every parse failure.
var ErrInvalid = errors.New("invalid version")

// Phases of a pre-release, in ascending order.
const (
	PhaseAlpha = "a"
	PhaseBeta  = "b"
	PhaseRC    = "rc"
)

// Version is an immutable PEP 440 version. The zero value is not a valid
// version; use Parse or New.
type Version struct {
	text    string
	epoch   int
	release []int
	phase   string
	pre     int
	hasPre  bool
	post    int
	hasPost bool
	dev     int
	hasDev  bool
	local   string
}

// Parse parses a version string such as "1.2.3", "2.0rc1", "1!3.0.post2" or
// "1.0.dev4+local.7".
func Parse(s string) (Version, error) {
	text := strings.TrimSpace(s)
	m := pattern.FindStringSubmatch(text)
	if m == nil {
		return Version{}, fmt.Errorf("%w: %q", ErrInvalid, s)
	}
	group := func(name string) string {
		return m[pattern.SubexpIndex(name)]
	}

	v := Version{text: text}

	var err error
	if e := group("epoch"); e != "" {
		if v.epoch, err = strconv.Atoi(e); err != nil {
			return Version{}, fmt.Errorf("%w: %q", ErrInvalid, s)
		}
	}

	for _, part := range strings.Split(group("release"), ".") {
		n, err := strconv.Atoi(part)
		if err != nil {
			return Version{}, fmt.Errorf("%w: %q", ErrInvalid, s)
		}
		v.release = append(v.release, n)
	}

	if group("pre") != "" {
		v.hasPre = true
		v.phase = normalizePhase(group("pre_l"))
		if v.pre, err = atoiDefault(group("pre_n")); err != nil {
			return Version{}, fmt.Errorf("%w: %q", ErrInvalid, s)
		}
	}

	if group("post") != "" {
		v.hasPost = true
		n := group("post_n1")
		if n == "" {
			n = group("post_n2")
		}
		if v.post, err = atoiDefault(n); err != nil {
			return Version{}, fmt.Errorf("%w: %q", ErrInvalid, s)
		}
	}

	if group("dev") != "" {
		v.hasDev = true
		if v.dev, err = atoiDefault(group("dev_n")); err != nil {
			return Version{}, fmt.Errorf("%w: %q", ErrInvalid, s)
		}
	}

	if l := group("local"); l != "" {
		v.local = strings.ToLower(strings.NewReplacer("-", ".", "_", ".").Replace(l))
	}

	return v, nil
}

// MustParse is like Parse but panics on invalid input.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// New builds a final release from its numeric components.
func New(release ...int) Version {
	if len(release) == 0 {
		release = []int{0}
	}
	parts := make([]string, len(release))
	for i, n := range release {
		parts[i] = strconv.Itoa(n)
	}
	return Version{
		text:    strings.Join(parts, "."),
		release: append([]int(nil), release...),
	}
}

func atoiDefault(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

func normalizePhase(l string) string {
	switch strings.ToLower(l) {
	case "a", "alpha":
		return PhaseAlpha
	case "b", "beta":
		return PhaseBeta
	default:
		return PhaseRC
	}
}

// String returns the version as it was written.
func (v Version) String() string {
	return v.text
}

// IsZero reports whether v is the zero Version.
func (v Version) IsZero() bool {
	return len(v.release) == 0
}

func (v Version) Epoch() int { return v.epoch }

func (v Version) Major() int { return v.component(0) }

func (v Version) Minor() int { return v.component(1) }

func (v Version) Patch() int { return v.component(2) }

// Precision is the number of release components that were written.
func (v Version) Precision() int { return len(v.release) }

func (v Version) component(i int) int {
	if i < len(v.release) {
		return v.release[i]
	}
	return 0
}

// Local returns the normalized local version label, if any.
func (v Version) Local() string { return v.local }

// IsPrerelease reports whether v is unstable: a pre-release or a
// development release.
func (v Version) IsPrerelease() bool {
	return v.hasPre || v.hasDev
}

// IsStable is the negation of IsPrerelease.
func (v Version) IsStable() bool {
	return !v.IsPrerelease()
}

// IsPostRelease reports whether v carries a post-release segment.
func (v Version) IsPostRelease() bool {
	return v.hasPost
}

// Stable returns the final release that v leads up to.
func (v Version) Stable() Version {
	if v.IsStable() {
		return v
	}
	s := New(v.release...)
	s.epoch = v.epoch
	if v.epoch != 0 {
		s.text = strconv.Itoa(v.epoch) + "!" + s.text
	}
	return s
}

// NextPatch returns the smallest stable version above v at patch
// precision. For an unstable version that is the release it precedes.
func (v Version) NextPatch() Version {
	if v.IsPrerelease() {
		return v.withRelease(v.Major(), v.Minor(), v.Patch())
	}
	return v.withRelease(v.Major(), v.Minor(), v.Patch()+1)
}

func (v Version) NextMinor() Version {
	return v.withRelease(v.Major(), v.Minor()+1, 0)
}

func (v Version) NextMajor() Version {
	return v.withRelease(v.Major()+1, 0, 0)
}

// NextBreaking returns the first version considered incompatible with v
// under caret semantics.
func (v Version) NextBreaking() Version {
	if v.Major() == 0 {
		if v.Minor() != 0 {
			return v.NextMinor()
		}
		switch v.Precision() {
		case 1:
			return v.NextMajor()
		case 2:
			return v.NextMinor()
		}
		return v.withRelease(0, 0, v.Patch()+1)
	}
	return v.NextMajor()
}

func (v Version) withRelease(release ...int) Version {
	n := New(release...)
	n.epoch = v.epoch
	if v.epoch != 0 {
		n.text = strconv.Itoa(v.epoch) + "!" + n.text
	}
	return n
}

// Compare returns -1, 0 or +1 following PEP 440 ordering.
func (v Version) Compare(o Version) int {
	if c := cmp.Compare(v.epoch, o.epoch); c != 0 {
		return c
	}
	if c := compareRelease(v.release, o.release); c != 0 {
		return c
	}
	if c := compareKeys(v.preKey(), o.preKey()); c != 0 {
		return c
	}
	if c := compareKeys(v.postKey(), o.postKey()); c != 0 {
		return c
	}
	if c := compareKeys(v.devKey(), o.devKey()); c != 0 {
		return c
	}
	return compareLocal(v.local, o.local)
}

func (v Version) Equal(o Version) bool { return v.Compare(o) == 0 }

func (v Version) Less(o Version) bool { return v.Compare(o) < 0 }

// Key is a canonical form of v; two versions are Equal exactly when their
// keys match.
func (v Version) Key() string {
	var b strings.Builder
	if v.epoch != 0 {
		fmt.Fprintf(&b, "%d!", v.epoch)
	}
	release := v.release
	for len(release) > 1 && release[len(release)-1] == 0 {
		release = release[:len(release)-1]
	}
	for i, n := range release {
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(strconv.Itoa(n))
	}
	if v.hasPre {
		fmt.Fprintf(&b, "%s%d", v.phase, v.pre)
	}
	if v.hasPost {
		fmt.Fprintf(&b, ".post%d", v.post)
	}
	if v.hasDev {
		fmt.Fprintf(&b, ".dev%d", v.dev)
	}
	if v.local != "" {
		b.WriteString("+" + v.local)
	}
	return b.String()
}

func (v Version) MarshalText() ([]byte, error) {
	return []byte(v.text), nil
}

func (v *Version) UnmarshalText(data []byte) error {
	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

func compareRelease(a, b []int) int {
	for i := 0; i < max(len(a), len(b)); i++ {
		var x, y int
		if i < len(a) {
			x = a[i]
		}
		if i < len(b) {
			y = b[i]
		}
		if c := cmp.Compare(x, y); c != 0 {
			return c
		}
	}
	return 0
}

func phaseRank(phase string) int {
	switch phase {
	case PhaseAlpha:
		return 0
	case PhaseBeta:
		return 1
	default:
		return 2
	}
}

// Sort keys: a development release without a pre-release sorts before all
// pre-releases, a release without pre-release sorts after them.
func (v Version) preKey() []int {
	switch {
	case !v.hasPre && !v.hasPost && v.hasDev:
		return []int{-1}
	case !v.hasPre:
		return []int{1}
	default:
		return []int{0, phaseRank(v.phase), v.pre}
	}
}

func (v Version) postKey() []int {
	if !v.hasPost {
		return []int{-1}
	}
	return []int{0, v.post}
}

func (v Version) devKey() []int {
	if !v.hasDev {
		return []int{1}
	}
	return []int{0, v.dev}
}

func compareKeys(a, b []int) int {
	for i := 0; i < min(len(a), len(b)); i++ {
		if c := cmp.Compare(a[i], b[i]); c != 0 {
			return c
		}
	}
	return cmp.Compare(len(a), len(b))
}

func compareLocal(a, b string) int {
	switch {
	case a == b:
		return 0
	case a == "":
		return -1
	case b == "":
		return 1
	}
	as, bs := strings.Split(a, "."), strings.Split(b, ".")
	for i := 0; i < min(len(as), len(bs)); i++ {
		x, xerr := strconv.Atoi(as[i])
		y, yerr := strconv.Atoi(bs[i])
		switch {
		case xerr == nil && yerr == nil:
			if c := cmp.Compare(x, y); c != 0 {
				return c
			}
		case xerr == nil:
			return 1
		case yerr == nil:
			return -1
		default:
			if c := strings.Compare(as[i], bs[i]); c != 0 {
				return c
			}
		}
	}
	return cmp.Compare(len(as), len(bs))
}
