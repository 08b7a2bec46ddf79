package config

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"gopkg.in/ini.v1"

	"github.com/benchrig/benchrig/pkg/domain"
)

// Entry is a resolved product selection: a folder under the configuration
// root and the files inside it to load, in order.
type Entry struct {
	Folder string
	Files  []string
}

// Paths returns the entry files joined with their folder.
func (e Entry) Paths() []string {
	out := make([]string, len(e.Files))
	for i, f := range e.Files {
		out[i] = e.Folder + "/" + f
	}
	return out
}

type lookupRow struct {
	name  string
	value string
}

// Lookup maps (test type, product) to an Entry.
//
// The table is a key=value file with one section per test type:
//
//	[rf_cal]
//	board_a = ("board_a", "base.cfg", "bands.cfg")
//
// Product names match case-insensitively; two rows that match the same
// product make the selection ambiguous.
type Lookup struct {
	source string
	tables map[string]map[string][]lookupRow
}

// LoadLookup reads the lookup table at path.
func LoadLookup(path string) (*Lookup, error) {
	return loadLookup(path, path)
}

// ParseLookup reads a lookup table from memory. source names it in errors.
func ParseLookup(source string, data []byte) (*Lookup, error) {
	return loadLookup(source, data)
}

func loadLookup(source string, src any) (*Lookup, error) {
	f, err := ini.LoadSources(ini.LoadOptions{AllowShadows: true}, src)
	if err != nil {
		return nil, &domain.ConfigurationError{Source: source, Msg: "failed to read lookup table", Err: err}
	}

	l := &Lookup{source: source, tables: make(map[string]map[string][]lookupRow)}
	for _, sec := range f.Sections() {
		if sec.Name() == ini.DefaultSection && len(sec.Keys()) == 0 {
			continue
		}
		table := l.tables[sec.Name()]
		if table == nil {
			table = make(map[string][]lookupRow)
			l.tables[sec.Name()] = table
		}
		for _, key := range sec.Keys() {
			folded := strings.ToLower(key.Name())
			for _, v := range key.ValueWithShadows() {
				table[folded] = append(table[folded], lookupRow{name: key.Name(), value: v})
			}
		}
	}
	return l, nil
}

// TestTypes returns the test types present in the table, sorted.
func (l *Lookup) TestTypes() []string {
	return slices.Sorted(maps.Keys(l.tables))
}

// Products returns the product names declared for testType, sorted.
func (l *Lookup) Products(testType string) []string {
	var out []string
	for _, rows := range l.tables[testType] {
		for _, r := range rows {
			out = append(out, r.name)
		}
	}
	slices.Sort(out)
	return out
}

// Resolve returns the entry for (testType, product).
func (l *Lookup) Resolve(testType, product string) (Entry, error) {
	table, ok := l.tables[testType]
	if !ok {
		return Entry{}, domain.Configf(l.source, "no lookup section for test type %q", testType)
	}
	rows := table[strings.ToLower(product)]
	switch len(rows) {
	case 0:
		return Entry{}, domain.Configf(l.source, "unknown product %q for test type %q", product, testType)
	case 1:
	default:
		names := make([]string, len(rows))
		for i, r := range rows {
			names[i] = r.name
		}
		return Entry{}, domain.Configf(l.source, "ambiguous product %q for test type %q: matches %s",
			product, testType, strings.Join(names, ", "))
	}

	items, err := ParseLiteralSequence(rows[0].value)
	if err != nil {
		return Entry{}, &domain.ConfigurationError{
			Source: l.source,
			Msg:    fmt.Sprintf("entry %s/%s", testType, rows[0].name),
			Err:    err,
		}
	}
	if len(items) == 0 {
		return Entry{}, domain.Configf(l.source, "entry %s/%s is empty", testType, rows[0].name)
	}
	strs := make([]string, len(items))
	for i, it := range items {
		s, ok := it.(string)
		if !ok {
			return Entry{}, domain.Configf(l.source, "entry %s/%s: element %d is not a string", testType, rows[0].name, i)
		}
		strs[i] = s
	}
	return Entry{Folder: strs[0], Files: strs[1:]}, nil
}
