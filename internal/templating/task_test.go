package templating

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/behaviors/internal/behavior"
	"github.com/rendis/behaviors/internal/logging"
	"github.com/rendis/behaviors/pkg/schema"
)

func TestStepData(t *testing.T) {
	d := NewStepData(
		Entry{Key: "output:text:a", Value: "x"},
		Entry{Key: "context:user", Value: "Ada"},
		Entry{Key: "outputs", Value: "not an output"},
	)
	d.Store("output:text:a", "y")

	v, ok := d.Get("output:text:a")
	require.True(t, ok)
	assert.Equal(t, "y", v)
	_, ok = d.Get("missing")
	assert.False(t, ok)

	assert.Len(t, d.Entries(), 3)
	out := d.All("output")
	require.Len(t, out, 1, "prefix must be followed by a colon")
	assert.Equal(t, "output:text:a", out[0].Key)
}

func TestTask_Apply(t *testing.T) {
	data := NewStepData(
		Entry{Key: "context:user", Value: map[string]any{"name": "Ada"}},
		Entry{Key: "context:plan", Value: "gold"},
		Entry{Key: "output:text:greet:0", Value: "Hi ${{ user.name }}, plan ${{ plan }}"},
		Entry{Key: "output:html:greet:1", Value: "<p>${{ memory.note }}</p>"},
		Entry{Key: "output:image:greet:2", Value: "${{ user.name }}"},
		Entry{Key: "quickReplies:greet", Value: []schema.QuickReply{
			{Value: "I'm ${{ user.name }}", Expressions: "confirm(${{ plan }})", IsDefault: true},
			{Value: "No"},
		}},
	)
	memory := map[string]any{"note": "a < b"}

	task := NewTask(nil, logging.Discard())
	require.NoError(t, task.Apply(context.Background(), data, memory))

	text, _ := data.Get("output:text:greet:0")
	assert.Equal(t, "Hi Ada, plan gold", text)
	pre, _ := data.Get("output:text:greet:0:preTemplated")
	assert.Equal(t, "Hi ${{ user.name }}, plan ${{ plan }}", pre)
	post, _ := data.Get("output:text:greet:0:postTemplated")
	assert.Equal(t, "Hi Ada, plan gold", post)

	html, _ := data.Get("output:html:greet:1")
	assert.Equal(t, "<p>a &lt; b</p>", html)

	image, _ := data.Get("output:image:greet:2")
	assert.Equal(t, "${{ user.name }}", image, "only text and html outputs are templated")
	_, ok := data.Get("output:image:greet:2:preTemplated")
	assert.False(t, ok)

	replies, _ := data.Get("quickReplies:greet")
	require.Len(t, replies, 2)
	qr := replies.([]schema.QuickReply)
	assert.Equal(t, "I'm Ada", qr[0].Value)
	assert.Equal(t, "confirm(gold)", qr[0].Expressions)
	assert.True(t, qr[0].IsDefault)
	assert.Equal(t, "No", qr[1].Value)

	preReplies, _ := data.Get("quickReplies:greet:preTemplated")
	assert.Equal(t, "I'm ${{ user.name }}", preReplies.([]schema.QuickReply)[0].Value)
}

func TestTask_ApplyIsIdempotentOnTemplatedKeys(t *testing.T) {
	data := NewStepData(Entry{Key: "output:text:a", Value: "x ${{ 1 + 1 }}"})
	task := NewTask(nil, logging.Discard())
	require.NoError(t, task.Apply(context.Background(), data, nil))
	require.NoError(t, task.Apply(context.Background(), data, nil))

	assert.Len(t, data.Entries(), 3)
	pre, _ := data.Get("output:text:a:preTemplated")
	assert.Equal(t, "x 2", pre, "second pass sees the already templated value")
}

func TestTask_ApplyErrorsAreLoggedAndSkipped(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	data := NewStepData(
		Entry{Key: "output:text:bad", Value: "Hi ${{ name"},
		Entry{Key: "output:text:good", Value: "Hi ${{ 'Ada' }}"},
	)
	require.NoError(t, NewTask(nil, logger).Apply(context.Background(), data, nil))

	bad, _ := data.Get("output:text:bad")
	assert.Equal(t, "Hi ${{ name", bad)
	_, ok := data.Get("output:text:bad:postTemplated")
	assert.False(t, ok)

	good, _ := data.Get("output:text:good")
	assert.Equal(t, "Hi Ada", good)
	assert.Contains(t, buf.String(), "output templating failed")
}

func TestTask_ApplyQuickReplyKeepsRenderedValue(t *testing.T) {
	data := NewStepData(
		Entry{Key: "context:plan", Value: "gold"},
		Entry{Key: "quickReplies:upgrade", Value: []schema.QuickReply{
			{Value: "Keep ${{ plan }}", Expressions: "confirm(${{ plan"},
		}},
	)
	require.NoError(t, NewTask(nil, logging.Discard()).Apply(context.Background(), data, nil))

	replies, _ := data.Get("quickReplies:upgrade")
	qr := replies.([]schema.QuickReply)
	assert.Equal(t, "Keep gold", qr[0].Value)
	assert.Equal(t, "confirm(${{ plan", qr[0].Expressions)
}

func TestTask_ApplySkipsExpressionContexts(t *testing.T) {
	data := NewStepData(
		Entry{Key: "context:rule", Value: schema.NewNode("greeting", schema.NewNode("*"))},
		Entry{Key: "context:rules", Value: []*schema.Node{schema.NewNode("a")}},
		Entry{Key: "context:count", Value: 3},
		Entry{Key: "output:text:a", Value: "${{ rule == nil && rules == nil }} ${{ count + 1 }}"},
	)
	require.NoError(t, NewTask(nil, logging.Discard()).Apply(context.Background(), data, nil))

	v, _ := data.Get("output:text:a")
	assert.Equal(t, "true 4", v)
}

func TestTask_ApplyNoMemory(t *testing.T) {
	data := NewStepData(Entry{Key: "output:text:a", Value: "${{ memory == nil }}"})
	require.NoError(t, NewTask(nil, logging.Discard()).Apply(context.Background(), data, map[string]any{}))
	v, _ := data.Get("output:text:a")
	assert.Equal(t, "true", v, "empty memory is not exposed")
}

func TestTask_ApplyCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewTask(nil, nil).Apply(ctx, NewStepData(), nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFromResult(t *testing.T) {
	res := &behavior.Result{Triggered: []behavior.Triggered{
		{
			BehaviorID: "greet",
			Outputs: []schema.Output{
				{Type: schema.OutputText, Value: "Hello ${{ name }}"},
				{Type: schema.OutputHTML, Value: "<b>${{ name }}</b>"},
			},
			QuickReplies: []schema.QuickReply{{Value: "Thanks ${{ name }}"}},
		},
		{BehaviorID: "silent", Actions: []string{"log"}},
	}}

	data := FromResult(res, map[string]any{"name": "<Ada>"})
	require.NoError(t, NewTask(nil, logging.Discard()).Apply(context.Background(), data, nil))

	text, _ := data.Get("output:text:greet:0")
	assert.Equal(t, "Hello <Ada>", text)
	html, _ := data.Get("output:html:greet:1")
	assert.Equal(t, "<b>&lt;Ada&gt;</b>", html)
	qr, _ := data.Get("quickReplies:greet")
	assert.Equal(t, "Thanks <Ada>", qr.([]schema.QuickReply)[0].Value)

	assert.Equal(t, "Thanks ${{ name }}", res.Triggered[0].QuickReplies[0].Value, "result is not mutated")

	empty := FromResult(nil, nil)
	assert.Empty(t, empty.Entries())
}
