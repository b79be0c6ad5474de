package graph

import (
	"fmt"
	"hash/fnv"
	"sort"

	"github.com/goccy/go-json"
)

// Schema is the fingerprint of one run's concrete inputs: the names, dtypes,
// and fully resolved shapes. Managers key their plan caches on it, so two
// runs with the same schema share a compiled plan.
type Schema struct {
	entries []schemaEntry
}

type schemaEntry struct {
	Name  string  `json:"name"`
	Dtype Dtype   `json:"dtype"`
	Shape []int64 `json:"shape"`
}

// SchemaOf computes the schema of concrete run values. Entries are sorted by
// name so map iteration order never leaks into the fingerprint.
func SchemaOf(values Values) Schema {
	entries := make([]schemaEntry, 0, len(values))
	for name, t := range values {
		entries = append(entries, schemaEntry{Name: name, Dtype: t.Spec.Dtype, Shape: t.Spec.Shape})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return Schema{entries: entries}
}

// Key returns a stable cache key for the schema.
func (s Schema) Key() string {
	raw, err := json.Marshal(s.entries)
	if err != nil {
		// entries only hold strings and int64 slices; Marshal cannot fail.
		panic(err)
	}
	h := fnv.New64a()
	_, _ = h.Write(raw)
	return fmt.Sprintf("%016x", h.Sum64())
}

// Len returns the number of inputs covered by the schema.
func (s Schema) Len() int { return len(s.entries) }

// Matches checks the schema against a graph's declared inputs: every
// declared input must be present with a satisfying spec, and no extra
// values are allowed.
func (s Schema) Matches(g *Graph) error {
	if len(s.entries) != g.Inputs.Len() {
		return fmt.Errorf("got %d inputs, graph %q declares %d", len(s.entries), g.Name, g.Inputs.Len())
	}
	byName := make(map[string]schemaEntry, len(s.entries))
	for _, e := range s.entries {
		byName[e.Name] = e
	}
	for pair := g.Inputs.Oldest(); pair != nil; pair = pair.Next() {
		e, ok := byName[pair.Key]
		if !ok {
			return fmt.Errorf("missing input %q", pair.Key)
		}
		concrete := TensorSpec{Dtype: e.Dtype, Shape: e.Shape}
		if !concrete.Satisfies(pair.Value) {
			return fmt.Errorf("input %q: %s does not satisfy declared %s", pair.Key, concrete, pair.Value)
		}
	}
	return nil
}
