package templating

import (
	"context"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/rendis/behaviors/internal/behavior"
	"github.com/rendis/behaviors/internal/logging"
	"github.com/rendis/behaviors/pkg/schema"
)

// Key prefixes of the step data the task reads and writes.
const (
	PrefixOutput       = "output"
	PrefixOutputText   = "output:text"
	PrefixOutputHTML   = "output:html"
	PrefixQuickReplies = "quickReplies"
	PrefixContext      = "context"

	SuffixPreTemplated  = "preTemplated"
	SuffixPostTemplated = "postTemplated"
)

// Entry is one keyed value of a conversation step.
type Entry struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// StepData is the ordered, keyed data of a conversation step. Storing an
// existing key replaces its value in place.
type StepData struct {
	mu      sync.RWMutex
	entries []Entry
	index   map[string]int
}

// NewStepData creates step data from entries in order.
func NewStepData(entries ...Entry) *StepData {
	d := &StepData{index: make(map[string]int)}
	for _, e := range entries {
		d.Store(e.Key, e.Value)
	}
	return d
}

// Store sets key to value.
func (d *StepData) Store(key string, value any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i, ok := d.index[key]; ok {
		d.entries[i].Value = value
		return
	}
	d.index[key] = len(d.entries)
	d.entries = append(d.entries, Entry{Key: key, Value: value})
}

// Get returns the value stored under key.
func (d *StepData) Get(key string) (any, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	i, ok := d.index[key]
	if !ok {
		return nil, false
	}
	return d.entries[i].Value, true
}

// All returns the entries whose key is prefix or starts with prefix + ":".
func (d *StepData) All(prefix string) []Entry {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []Entry
	for _, e := range d.entries {
		if e.Key == prefix || strings.HasPrefix(e.Key, prefix+":") {
			out = append(out, e)
		}
	}
	return out
}

// Entries returns a copy of every entry in order.
func (d *StepData) Entries() []Entry {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]Entry(nil), d.entries...)
}

// Task templates a step's outputs and quick replies.
type Task struct {
	engine *Engine
	logger *slog.Logger
}

// NewTask creates a templating task. A nil engine or logger gets a default.
func NewTask(engine *Engine, logger *slog.Logger) *Task {
	if engine == nil {
		engine = NewEngine()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Task{engine: engine, logger: logger}
}

// Apply templates every output:text and output:html entry and every quick
// reply of the step. The context map holds each context:<name> entry under
// <name> (rule-node entries excluded), plus memory under "memory" when it is non-empty. Pre- and
// post-templated values are stored under <key>:preTemplated and
// <key>:postTemplated. A template that fails is logged and its entry left
// untouched.
func (t *Task) Apply(ctx context.Context, data *StepData, memory map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	vars := t.contextMap(data, memory)
	t.templateOutputs(ctx, data, vars)
	t.templateQuickReplies(ctx, data, vars)
	return nil
}

func (t *Task) contextMap(data *StepData, memory map[string]any) map[string]any {
	vars := make(map[string]any)
	for _, e := range data.All(PrefixContext) {
		if !templateValue(e.Value) {
			continue
		}
		name := e.Key[strings.Index(e.Key, ":")+1:]
		vars[name] = e.Value
	}
	if len(memory) > 0 {
		vars["memory"] = memory
	}
	return vars
}

// templateValue reports whether a context entry is visible to templates.
// Expression contexts (rule nodes) and nil entries are not.
func templateValue(v any) bool {
	switch v.(type) {
	case nil, *schema.Node, schema.Node, []*schema.Node, []schema.Node:
		return false
	}
	return true
}

func (t *Task) templateOutputs(ctx context.Context, data *StepData, vars map[string]any) {
	for _, e := range data.All(PrefixOutput) {
		var mode Mode
		switch {
		case strings.HasPrefix(e.Key, PrefixOutputText):
			mode = ModeText
		case strings.HasPrefix(e.Key, PrefixOutputHTML):
			mode = ModeHTML
		default:
			continue
		}
		if isTemplatedKey(e.Key) {
			continue
		}
		pre, ok := e.Value.(string)
		if !ok {
			continue
		}

		post, err := t.engine.Render(pre, vars, mode)
		if err != nil {
			logging.LogWith(ctx, t.logger).Error("output templating failed", "key", e.Key, "error", err)
			continue
		}
		data.Store(e.Key, post)
		storeTemplated(data, e.Key, pre, post)
	}
}

func (t *Task) templateQuickReplies(ctx context.Context, data *StepData, vars map[string]any) {
	for _, e := range data.All(PrefixQuickReplies) {
		if isTemplatedKey(e.Key) {
			continue
		}
		replies, ok := e.Value.([]schema.QuickReply)
		if !ok {
			continue
		}
		pre := append([]schema.QuickReply(nil), replies...)
		post := make([]schema.QuickReply, len(replies))
		for i, qr := range replies {
			post[i] = qr
			value, err := t.engine.Render(qr.Value, vars, ModeText)
			if err != nil {
				logging.LogWith(ctx, t.logger).Error("quick reply templating failed", "key", e.Key, "field", "value", "error", err)
				continue
			}
			post[i].Value = value
			expressions, err := t.engine.Render(qr.Expressions, vars, ModeText)
			if err != nil {
				logging.LogWith(ctx, t.logger).Error("quick reply templating failed", "key", e.Key, "field", "expressions", "error", err)
				continue
			}
			post[i].Expressions = expressions
		}
		data.Store(e.Key, post)
		storeTemplated(data, e.Key, pre, post)
	}
}

func storeTemplated(data *StepData, key string, pre, post any) {
	data.Store(key+":"+SuffixPreTemplated, pre)
	data.Store(key+":"+SuffixPostTemplated, post)
}

func isTemplatedKey(key string) bool {
	return strings.HasSuffix(key, ":"+SuffixPreTemplated) || strings.HasSuffix(key, ":"+SuffixPostTemplated)
}

// FromResult lays out the outputs and quick replies of triggered behaviors
// as step data, keyed output:<type>:<behavior>:<n> and
// quickReplies:<behavior>.
func FromResult(res *behavior.Result, vars map[string]any) *StepData {
	data := NewStepData()
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		data.Store(PrefixContext+":"+name, vars[name])
	}
	if res == nil {
		return data
	}
	for _, tr := range res.Triggered {
		for i, o := range tr.Outputs {
			data.Store(outputKey(o.Type, tr.BehaviorID, i), o.Value)
		}
		if len(tr.QuickReplies) > 0 {
			data.Store(PrefixQuickReplies+":"+tr.BehaviorID, append([]schema.QuickReply(nil), tr.QuickReplies...))
		}
	}
	return data
}

func outputKey(t schema.OutputType, behaviorID string, i int) string {
	prefix := PrefixOutputText
	if t == schema.OutputHTML {
		prefix = PrefixOutputHTML
	}
	return prefix + ":" + behaviorID + ":" + strconv.Itoa(i)
}
