// Package membership provides the typed ID sets the CLI and refactorer use
// to select files, actions and packages, and the query language that
// populates them.
//
// Each spec string is one of:
//
//	NNNN            add ID NNNN
//	-NNNN           remove ID NNNN
//	NNNN/           add NNNN and all its descendants
//	NNNN/D          add NNNN and descendants down to depth D (1 is NNNN alone)
//	-NNNN/[D]       remove instead of add
//	%pkg/NAME[/SCOPE]      (or %p) add members of package NAME
//	%not-pkg/NAME[/SCOPE]  (or %np) add members outside package NAME
//	%match/PATTERN  (or %m) add members whose name matches PATTERN
//
// PATTERN uses * as a wildcard; ':' separates alternatives and "\:" is a
// literal colon. Specs apply in order, so a removal only affects what earlier
// specs added. A malformed spec stops population with ErrBadValue; specs
// before it stay applied.
package membership

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/papapumpkin/buildgraph/internal/intset"
	"github.com/papapumpkin/buildgraph/internal/store"
)

// ErrBadValue is returned for a spec that cannot be parsed or names
// something that does not exist.
var ErrBadValue = errors.New("bad value")

var idSpec = regexp.MustCompile(`^(-?)(\d+)(?:/(\d*))?$`)

// resolver answers the package and name queries of one set kind.
type resolver interface {
	// inPackage returns members of pkg (or, with inside false, of every
	// other package), restricted to scope when one is given.
	inPackage(ctx context.Context, pkg int, scope *store.Scope, inside bool) ([]int, error)
	// matching returns members whose name matches any of alts.
	matching(ctx context.Context, alts []*regexp.Regexp, raw []string) ([]int, error)
}

func badValue(spec string, format string, args ...any) error {
	return fmt.Errorf("membership: %q: %s: %w", spec, fmt.Sprintf(format, args...), ErrBadValue)
}

// populate applies specs to set in order. extra gets first refusal on
// every spec that is not an ID or % query; it reports whether it handled it.
func populate(ctx context.Context, src Source, set *intset.Set, r resolver, specs []string,
	extra func(ctx context.Context, spec string) (bool, error),
) error {
	for _, spec := range specs {
		if err := populateOne(ctx, src, set, r, spec, extra); err != nil {
			return err
		}
	}
	return nil
}

func populateOne(ctx context.Context, src Source, set *intset.Set, r resolver, spec string,
	extra func(ctx context.Context, spec string) (bool, error),
) error {
	if m := idSpec.FindStringSubmatch(spec); m != nil {
		return applyID(set, spec, m)
	}
	if strings.HasPrefix(spec, "%") {
		return applyQuery(ctx, src, set, r, spec)
	}
	if extra != nil {
		handled, err := extra(ctx, spec)
		if err != nil || handled {
			return err
		}
	}
	return badValue(spec, "unrecognised spec")
}

func applyID(set *intset.Set, spec string, m []string) error {
	remove := m[1] == "-"
	id, err := strconv.Atoi(m[2])
	if err != nil {
		return badValue(spec, "bad id")
	}
	if !set.Hierarchy().Valid(id) {
		return badValue(spec, "no such id %d", id)
	}

	depth := 1
	if strings.Contains(spec, "/") {
		depth = 0
		if m[3] != "" {
			depth, err = strconv.Atoi(m[3])
			if err != nil || depth < 1 {
				return badValue(spec, "depth must be at least 1")
			}
		}
	}

	if remove {
		set.RemoveSubTreeDepth(id, depth)
		return nil
	}
	if err := set.AddSubTreeDepth(id, depth); err != nil {
		return badValue(spec, "%v", err)
	}
	return nil
}

func applyQuery(ctx context.Context, src Source, set *intset.Set, r resolver, spec string) error {
	cmd, arg, ok := strings.Cut(spec[1:], "/")
	if !ok || arg == "" {
		return badValue(spec, "missing argument")
	}

	var ids []int
	var err error
	switch cmd {
	case "pkg", "p", "not-pkg", "np":
		name, scope := splitScope(arg)
		pkg, lerr := src.LookupPackage(ctx, name)
		if lerr != nil {
			return badValue(spec, "no package %q", name)
		}
		ids, err = r.inPackage(ctx, pkg, scope, cmd == "pkg" || cmd == "p")
	case "match", "m":
		raw := splitAlternatives(arg)
		ids, err = r.matching(ctx, compileGlobs(raw), raw)
	default:
		return badValue(spec, "unknown query %%%s", cmd)
	}
	if err != nil {
		return fmt.Errorf("membership: %q: %w", spec, err)
	}
	for _, id := range ids {
		if set.Hierarchy().Valid(id) {
			// Valid was just checked; Add cannot fail.
			_ = set.Add(id)
		}
	}
	return nil
}

// splitScope separates a trailing /SCOPE from a package name.
func splitScope(arg string) (string, *store.Scope) {
	i := strings.LastIndex(arg, "/")
	if i < 0 {
		return arg, nil
	}
	sc, ok := store.ParseScope(arg[i+1:])
	if !ok {
		return arg, nil
	}
	return arg[:i], &sc
}

// splitAlternatives splits a pattern on ':' not preceded by a backslash and
// unescapes "\:".
func splitAlternatives(p string) []string {
	var alts []string
	var cur strings.Builder
	for i := 0; i < len(p); i++ {
		switch {
		case p[i] == '\\' && i+1 < len(p) && p[i+1] == ':':
			cur.WriteByte(':')
			i++
		case p[i] == ':':
			alts = append(alts, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(p[i])
		}
	}
	return append(alts, cur.String())
}

// compileGlobs turns * patterns into anchored regular expressions.
func compileGlobs(alts []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(alts))
	for i, a := range alts {
		q := strings.ReplaceAll(regexp.QuoteMeta(a), `\*`, `.*`)
		out[i] = regexp.MustCompile("^" + q + "$")
	}
	return out
}

func matchAny(res []*regexp.Regexp, s string) bool {
	for _, re := range res {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

// membersIn filters a member map by package and scope.
func membersIn(homes map[int]store.Home, pkg int, scope *store.Scope, inside bool) []int {
	var ids []int
	for id, h := range homes {
		if (h.Pkg == pkg) != inside {
			continue
		}
		if scope != nil && h.Scope != *scope {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}
