package facts

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/itchyny/gojq"
	"github.com/rendis/behaviors/internal/expressions"
	"github.com/rendis/behaviors/pkg/schema"
)

// Querier compiles domains into jq programs and caches them. A domain that
// starts with "." is a raw jq query; any other domain is a dotted key path
// ("memory.current.input"). It is safe for concurrent use.
type Querier struct {
	mu    sync.RWMutex
	cache map[string]*gojq.Code
}

// NewQuerier creates an empty Querier.
func NewQuerier() *Querier {
	return &Querier{cache: make(map[string]*gojq.Code)}
}

// Document returns facts backed by doc. doc is normalized to JSON-shaped
// values once, up front.
func (q *Querier) Document(doc any) *Document {
	return &Document{querier: q, doc: normalize(doc)}
}

// Query runs the program for domain against doc and returns every output.
func (q *Querier) Query(domain string, doc any) ([]any, error) {
	code, err := q.getOrCompile(domain)
	if err != nil {
		return nil, err
	}

	iter := code.Run(doc)
	var results []any
	for {
		val, ok := iter.Next()
		if !ok {
			break
		}
		if err, isErr := val.(error); isErr {
			return nil, schema.NewErrorf(schema.ErrCodeExecution,
				"jq evaluation failed for domain %q: %s", domain, err.Error()).
				WithCause(err).
				WithDetails(map[string]any{"domain": domain})
		}
		results = append(results, val)
	}
	return results, nil
}

// CacheSize returns the number of compiled domains.
func (q *Querier) CacheSize() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.cache)
}

func (q *Querier) getOrCompile(domain string) (*gojq.Code, error) {
	q.mu.RLock()
	if code, ok := q.cache[domain]; ok {
		q.mu.RUnlock()
		return code, nil
	}
	q.mu.RUnlock()

	q.mu.Lock()
	defer q.mu.Unlock()

	// Double-check after acquiring write lock.
	if code, ok := q.cache[domain]; ok {
		return code, nil
	}

	query, err := gojq.Parse(domainQuery(domain))
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation,
			"jq parse error in domain %q: %s", domain, err.Error()).
			WithCause(err).
			WithDetails(map[string]any{"domain": domain})
	}

	code, err := gojq.Compile(query,
		// Sandbox: return empty env to block $ENV and env access.
		gojq.WithEnvironLoader(func() []string { return nil }),
	)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation,
			"jq compile error in domain %q: %s", domain, err.Error()).
			WithCause(err).
			WithDetails(map[string]any{"domain": domain})
	}

	q.cache[domain] = code
	return code, nil
}

// domainQuery turns a dotted key path into a jq path expression.
func domainQuery(domain string) string {
	if domain == "" {
		return "."
	}
	if strings.HasPrefix(domain, ".") {
		return domain
	}
	var b strings.Builder
	b.WriteByte('.')
	for _, seg := range strings.Split(domain, ".") {
		if n, err := strconv.Atoi(seg); err == nil && n >= 0 {
			fmt.Fprintf(&b, "[%d]", n)
			continue
		}
		fmt.Fprintf(&b, "[%s]", strconv.Quote(seg))
	}
	return b.String()
}

// Document is a conversation-memory document viewed as facts. A domain with
// no output, or whose only output is null, is absent; a domain with several
// outputs yields them as a fact set. Query errors count as absent.
type Document struct {
	querier *Querier
	doc     any
}

// Lookup returns the fact addressed by domain.
func (d *Document) Lookup(domain string) (any, bool) {
	results, err := d.querier.Query(domain, d.doc)
	if err != nil {
		return nil, false
	}
	switch len(results) {
	case 0:
		return nil, false
	case 1:
		if results[0] == nil {
			return nil, false
		}
		return results[0], true
	default:
		return results, true
	}
}

// Raw returns the normalized document.
func (d *Document) Raw() any {
	return d.doc
}

var _ expressions.Facts = (*Document)(nil)

// normalize converts Go values to the JSON-shaped values jq understands:
// maps, []any, strings, bools, nil, int and float64. Other types are
// round-tripped through encoding/json.
func normalize(v any) any {
	switch val := v.(type) {
	case nil, string, bool, float64, int:
		return val
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, v := range val {
			out[k] = normalize(v)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, v := range val {
			out[i] = normalize(v)
		}
		return out
	case int64:
		return int(val)
	case int32:
		return int(val)
	case float32:
		return float64(val)
	case json.Number:
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return nil
		}
		var out any
		if err := json.Unmarshal(data, &out); err != nil {
			return nil
		}
		return out
	}
}
