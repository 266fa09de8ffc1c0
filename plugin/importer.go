package plugin

import (
	"maps"
	"regexp"
	"slices"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/flexigpt/lime-go/spec"
)

// Module is a named set of values and functions that import statements can bind.
type Module map[string]any

type ImporterOption func(*Importer) error

// WithModule registers or replaces a module under a dotted name.
func WithModule(name string, mod Module) ImporterOption {
	return func(im *Importer) error {
		if !modulePathRe.MatchString(name) {
			return errors.Wrapf(spec.ErrInvalidArgument, "invalid module name %q", name)
		}
		if mod == nil {
			return errors.Wrapf(spec.ErrInvalidArgument, "module %q is nil", name)
		}
		im.modules[name] = maps.Clone(mod)
		return nil
	}
}

// WithoutBuiltins drops the builtin module catalog.
func WithoutBuiltins() ImporterOption {
	return func(im *Importer) error {
		clear(im.modules)
		return nil
	}
}

var (
	modulePathRe = regexp.MustCompile(`^[A-Za-z_]\w*(\.[A-Za-z_]\w*)*$`)
	nameRe       = regexp.MustCompile(`^[A-Za-z_]\w*$`)
	fromRe       = regexp.MustCompile(`^from\s+(\S+)\s+import\s+(.+)$`)
)

// Importer resolves import statements against a module catalog.
// Only catalog modules can be imported.
type Importer struct {
	modules map[string]Module
}

func NewImporter(opts ...ImporterOption) (*Importer, error) {
	im := &Importer{modules: Builtins()}
	for _, o := range opts {
		if o == nil {
			continue
		}
		if err := o(im); err != nil {
			return nil, err
		}
	}
	return im, nil
}

// Modules lists the catalog's module names in sorted order.
func (im *Importer) Modules() []string {
	return slices.Sorted(maps.Keys(im.modules))
}

// Import executes stmt, binding names into globals.
// Supported forms: `import a[ as b], c` and `from a import x[ as y], z` (or `*`).
func (im *Importer) Import(stmt string, globals map[string]any) error {
	stmt = strings.TrimSpace(stmt)
	if rest, ok := strings.CutPrefix(stmt, "import "); ok {
		clauses, err := parseClauses(rest, modulePathRe)
		if err != nil {
			return err
		}
		for _, c := range clauses {
			mod, err := im.module(c.name)
			if err != nil {
				return err
			}
			if c.alias != "" {
				globals[c.alias] = map[string]any(maps.Clone(mod))
				continue
			}
			bindDotted(globals, c.name, map[string]any(maps.Clone(mod)))
		}
		return nil
	}

	mm := fromRe.FindStringSubmatch(stmt)
	if mm == nil {
		return errors.Mark(errors.New("Only import statements are allowed"), spec.ErrUnsupportedSyntax)
	}
	mod, err := im.module(mm[1])
	if err != nil {
		return err
	}
	list := strings.TrimSpace(mm[2])
	if list == "*" {
		maps.Copy(globals, mod)
		return nil
	}
	list = strings.TrimSuffix(strings.TrimPrefix(list, "("), ")")
	clauses, err := parseClauses(list, nameRe)
	if err != nil {
		return err
	}
	for _, c := range clauses {
		v, ok := mod[c.name]
		if !ok {
			return errors.Mark(
				errors.Newf("cannot import name '%s' from '%s'", c.name, mm[1]),
				spec.ErrMissingResource,
			)
		}
		globals[c.bound()] = v
	}
	return nil
}

func (im *Importer) module(name string) (Module, error) {
	mod, ok := im.modules[name]
	if !ok {
		return nil, errors.Mark(errors.Newf("No module named '%s'", name), spec.ErrMissingResource)
	}
	return mod, nil
}

type importClause struct {
	name  string
	alias string
}

func (c importClause) bound() string {
	if c.alias != "" {
		return c.alias
	}
	return c.name
}

func parseClauses(list string, nameOK *regexp.Regexp) ([]importClause, error) {
	var out []importClause
	for part := range strings.SplitSeq(list, ",") {
		f := strings.Fields(part)
		var c importClause
		switch {
		case len(f) == 1:
			c.name = f[0]
		case len(f) == 3 && f[1] == "as" && nameRe.MatchString(f[2]):
			c.name, c.alias = f[0], f[2]
		default:
			return nil, errors.Mark(
				errors.Newf("invalid import clause %q", strings.TrimSpace(part)),
				spec.ErrUnsupportedSyntax,
			)
		}
		if !nameOK.MatchString(c.name) {
			return nil, errors.Mark(errors.Newf("invalid import name %q", c.name), spec.ErrUnsupportedSyntax)
		}
		out = append(out, c)
	}
	return out, nil
}

// bindDotted binds value at a dotted path, creating intermediate maps.
func bindDotted(globals map[string]any, path string, value any) {
	segs := strings.Split(path, ".")
	cur := globals
	for _, s := range segs[:len(segs)-1] {
		next, ok := cur[s].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[s] = next
		}
		cur = next
	}
	cur[segs[len(segs)-1]] = value
}
