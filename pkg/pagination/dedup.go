package pagination

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/probemetrics/eventquery-client/pkg/query"
)

// Deduplicator tracks composite row identities seen across all pages of one
// call. The inclusive boundary comparator guarantees the boundary row(s)
// reappear on the next page; the deduplicator, not the predicate, is what
// prevents double-counting.
type Deduplicator struct {
	// fields are the identity fields (breakdown columns plus calculation
	// result names), sorted once for deterministic key encoding.
	fields []string

	seen           map[string]struct{}
	pageDuplicates int
}

// NewDeduplicator creates a deduplicator whose composite keys combine the
// specification's breakdown values and calculation values.
func NewDeduplicator(spec *query.Spec) *Deduplicator {
	fields := make([]string, 0, len(spec.Breakdowns)+len(spec.Calculations))
	fields = append(fields, spec.Breakdowns...)
	for _, c := range spec.Calculations {
		fields = append(fields, c.Key())
	}
	sort.Strings(fields)

	return &Deduplicator{
		fields: fields,
		seen:   make(map[string]struct{}),
	}
}

// StartPage resets the per-page duplicate counter.
func (d *Deduplicator) StartPage() {
	d.pageDuplicates = 0
}

// Add records a row's composite key. It returns true if the row is new and
// should be kept, false if it was already seen on an earlier page.
func (d *Deduplicator) Add(row query.Row) bool {
	key := d.compositeKey(row)
	if _, dup := d.seen[key]; dup {
		d.pageDuplicates++
		return false
	}
	d.seen[key] = struct{}{}
	return true
}

// PageDuplicates returns the duplicate count for the current page.
func (d *Deduplicator) PageDuplicates() int {
	return d.pageDuplicates
}

// UniqueCount returns the total number of distinct rows seen so far.
func (d *Deduplicator) UniqueCount() int {
	return len(d.seen)
}

// compositeKey encodes a row's identity fields into a deterministic,
// order-independent string. Used only for identity, never returned to the
// caller.
func (d *Deduplicator) compositeKey(row query.Row) string {
	var b strings.Builder
	for _, f := range d.fields {
		b.WriteString(f)
		b.WriteByte('=')
		b.WriteString(encodeValue(row[f]))
		b.WriteByte('|')
	}
	return b.String()
}

// encodeValue renders a result value with a type tag so that, e.g., the
// string "1" and the number 1 never collide. Strings are length-prefixed so
// embedded separators cannot produce ambiguous keys.
func encodeValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "~"
	case string:
		return "s" + strconv.Itoa(len(x)) + ":" + x
	case float64:
		return "f" + strconv.FormatFloat(x, 'g', -1, 64)
	case bool:
		return "b" + strconv.FormatBool(x)
	case int:
		return "f" + strconv.FormatFloat(float64(x), 'g', -1, 64)
	case int64:
		return "f" + strconv.FormatFloat(float64(x), 'g', -1, 64)
	default:
		// Uncommon value shapes fall back to their JSON encoding.
		data, err := json.Marshal(x)
		if err != nil {
			return "?"
		}
		return "j" + string(data)
	}
}
