// Package query translates flat request parameters into a typed filter,
// sort, projection and page spec, and executes the resulting listing
// against a record store.
//
// Range comparisons use the bracket form, e.g. duration[gte]=60 or
// status[in]=answered,missed. Anything not a reserved key is treated as a
// filter field and checked against the registry of known fields.
package query

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

type Op string

const (
	OpEq  Op = "eq"
	OpGt  Op = "gt"
	OpGte Op = "gte"
	OpLt  Op = "lt"
	OpLte Op = "lte"
	OpIn  Op = "in"
)

var ops = map[string]Op{
	"eq":  OpEq,
	"gt":  OpGt,
	"gte": OpGte,
	"lt":  OpLt,
	"lte": OpLte,
	"in":  OpIn,
}

// Condition is one node of the filter expression: Field compared to Value
// with Op. For OpIn, Value is a []any.
type Condition struct {
	Field string
	Op    Op
	Value any
}

// Sort is one (field, direction) pair of the sort spec.
type Sort struct {
	Field string
	Desc  bool
}

// Options is the fully translated query spec for one listing request.
type Options struct {
	Filter     []Condition
	Sort       []Sort
	Projection []string
	Page       int
	Limit      int
}

const (
	DefaultPage  = 1
	DefaultLimit = 25

	ownerField       = "userId"
	defaultSortField = "occurredAt"
)

type fieldType int

const (
	fieldText fieldType = iota
	fieldNumber
	fieldTime
)

type field struct {
	Column string
	Type   fieldType
}

// fields is the allow-list of filterable/sortable/selectable record
// fields, mapped to their store columns.
var fields = map[string]field{
	"id":          {Column: "id"},
	"userId":      {Column: "user_id"},
	"externalId":  {Column: "external_id"},
	"kind":        {Column: "kind"},
	"phoneNumber": {Column: "phone_number"},
	"direction":   {Column: "direction"},
	"status":      {Column: "status"},
	"duration":    {Column: "duration", Type: fieldNumber},
	"occurredAt":  {Column: "occurred_at", Type: fieldTime},
	"createdAt":   {Column: "created_at", Type: fieldTime},
}

var reserved = map[string]bool{
	"select": true,
	"sort":   true,
	"page":   true,
	"limit":  true,
}

// Column resolves a field name from the registry. It reports false for
// fields the store does not expose.
func Column(name string) (string, bool) {
	f, ok := fields[name]
	return f.Column, ok
}

// ParseError marks a request that could not be translated. Handlers map it
// to a client error.
type ParseError struct {
	msg string
}

func (e *ParseError) Error() string {
	return e.msg
}

func parseErrorf(format string, args ...any) *ParseError {
	return &ParseError{msg: fmt.Sprintf(format, args...)}
}

// Parse translates raw query args into Options scoped to the caller.
// An owner-equality condition on the caller's user id is always injected;
// a non-admin attempt to filter on another owner is silently replaced.
func Parse(args map[string]string, userID string, admin bool) (*Options, error) {
	opts := &Options{
		Page:  DefaultPage,
		Limit: DefaultLimit,
	}

	ownerSet := false
	for key, value := range args {
		if reserved[key] {
			continue
		}

		cond, err := parseCondition(key, value)
		if err != nil {
			return nil, err
		}

		if cond.Field == ownerField {
			if !admin {
				// Non-admin owner filters are never honored.
				continue
			}
			ownerSet = true
		}
		opts.Filter = append(opts.Filter, cond)
	}

	if !ownerSet {
		opts.Filter = append(opts.Filter, Condition{Field: ownerField, Op: OpEq, Value: userID})
	}

	if err := parseProjection(args["select"], opts); err != nil {
		return nil, err
	}
	if err := parseSort(args["sort"], opts); err != nil {
		return nil, err
	}
	parsePage(args, opts)

	return opts, nil
}

// parseCondition handles both the bare form (field=value, equality) and
// the bracket form (field[op]=value).
func parseCondition(key, value string) (Condition, error) {
	name := key
	opName := "eq"

	if i := strings.IndexByte(key, '['); i >= 0 {
		if !strings.HasSuffix(key, "]") {
			return Condition{}, parseErrorf("malformed filter key %q", key)
		}
		name = key[:i]
		opName = key[i+1 : len(key)-1]
	}

	op, ok := ops[opName]
	if !ok {
		return Condition{}, parseErrorf("unknown filter operator %q", opName)
	}

	f, ok := fields[name]
	if !ok {
		return Condition{}, parseErrorf("cannot filter on unknown field %q", name)
	}

	if op == OpIn {
		parts := strings.Split(value, ",")
		list := make([]any, 0, len(parts))
		for _, part := range parts {
			v, err := decodeValue(name, f, strings.TrimSpace(part))
			if err != nil {
				return Condition{}, err
			}
			list = append(list, v)
		}
		return Condition{Field: name, Op: op, Value: list}, nil
	}

	v, err := decodeValue(name, f, value)
	if err != nil {
		return Condition{}, err
	}
	return Condition{Field: name, Op: op, Value: v}, nil
}

// decodeValue coerces a raw string to the field's native type so the
// store compares numbers and timestamps, not text.
func decodeValue(name string, f field, raw string) (any, error) {
	switch f.Type {
	case fieldNumber:
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, parseErrorf("filter value for %q must be numeric, got %q", name, raw)
		}
		return n, nil
	case fieldTime:
		t, err := parseTime(raw)
		if err != nil {
			return nil, parseErrorf("filter value for %q must be a timestamp, got %q", name, raw)
		}
		return t, nil
	default:
		// Structured values must be valid JSON; plain strings pass through.
		if strings.HasPrefix(raw, "{") || strings.HasPrefix(raw, "[") || strings.HasPrefix(raw, `"`) {
			var v any
			if err := json.Unmarshal([]byte(raw), &v); err != nil {
				return nil, parseErrorf("malformed filter value for %q", name)
			}
			if s, ok := v.(string); ok {
				return s, nil
			}
			return nil, parseErrorf("unsupported filter value for %q", name)
		}
		return raw, nil
	}
}

func parseTime(raw string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", raw)
}

func parseProjection(raw string, opts *Options) error {
	if raw == "" {
		return nil
	}
	for _, name := range strings.Split(raw, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, ok := fields[name]; !ok {
			return parseErrorf("cannot select unknown field %q", name)
		}
		opts.Projection = append(opts.Projection, name)
	}
	return nil
}

func parseSort(raw string, opts *Options) error {
	if raw == "" {
		opts.Sort = []Sort{{Field: defaultSortField, Desc: true}}
		return nil
	}
	for _, name := range strings.Split(raw, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		desc := strings.HasPrefix(name, "-")
		name = strings.TrimPrefix(name, "-")
		if _, ok := fields[name]; !ok {
			return parseErrorf("cannot sort on unknown field %q", name)
		}
		opts.Sort = append(opts.Sort, Sort{Field: name, Desc: desc})
	}
	if len(opts.Sort) == 0 {
		opts.Sort = []Sort{{Field: defaultSortField, Desc: true}}
	}
	return nil
}

// parsePage falls back to defaults on anything that is not a positive
// integer. Limit is deliberately uncapped.
func parsePage(args map[string]string, opts *Options) {
	if n, err := strconv.Atoi(args["page"]); err == nil && n >= 1 {
		opts.Page = n
	}
	if n, err := strconv.Atoi(args["limit"]); err == nil && n >= 1 {
		opts.Limit = n
	}
}
