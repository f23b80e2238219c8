package image

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/weft/pkg/domain"
)

// ToValue converts a decoded YAML scalar or collection into a Value.
// Strings shaped like "@<kind>:<label>" become names; sequences become lists;
// mappings become maps keyed by their converted keys.
func ToValue(v any) (domain.Value, error) {
	switch x := v.(type) {
	case nil:
		return domain.Nil{}, nil
	case bool:
		return domain.Bool(x), nil
	case int:
		return domain.Int(x), nil
	case int64:
		return domain.Int(x), nil
	case uint64:
		return domain.Int(int64(x)), nil
	case string:
		if strings.HasPrefix(x, "@") {
			if n, err := domain.ParseName(x); err == nil {
				return n, nil
			}
		}
		return domain.Text(x), nil
	case []any:
		out := make(domain.List, len(x))
		for i, e := range x {
			ev, err := ToValue(e)
			if err != nil {
				return nil, err
			}
			out[i] = ev
		}
		return out, nil
	case map[string]any:
		entries := make([]domain.Entry, 0, len(x))
		for _, k := range sortedKeys(x) {
			ev, err := ToValue(x[k])
			if err != nil {
				return nil, err
			}
			kv, _ := ToValue(k)
			entries = append(entries, domain.Entry{Key: kv, Val: ev})
		}
		return domain.NewMap(entries...), nil
	case map[any]any:
		entries := make([]domain.Entry, 0, len(x))
		for k, e := range x {
			kv, err := ToValue(k)
			if err != nil {
				return nil, err
			}
			ev, err := ToValue(e)
			if err != nil {
				return nil, err
			}
			entries = append(entries, domain.Entry{Key: kv, Val: ev})
		}
		return domain.NewMap(entries...), nil
	}
	return nil, fmt.Errorf("unsupported value %v (%T)", v, v)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
