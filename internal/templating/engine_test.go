package templating

import (
	"sync"
	"testing"

	"github.com/rendis/behaviors/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_Render(t *testing.T) {
	e := NewEngine()
	data := map[string]any{
		"name":   "Ada",
		"count":  3,
		"vip":    true,
		"memory": map[string]any{"city": "Paris", "tags": []any{"a", "b"}},
	}

	tests := []struct {
		name string
		tpl  string
		want string
	}{
		{"no references", "Hello there", "Hello there"},
		{"simple", "Hello ${{ name }}!", "Hello Ada!"},
		{"no spaces", "Hi ${{name}}", "Hi Ada"},
		{"several", "${{ name }} has ${{ count }} items", "Ada has 3 items"},
		{"arithmetic", "${{ count * 2 }}", "6"},
		{"bool", "vip=${{ vip }}", "vip=true"},
		{"nested member", "from ${{ memory.city }}", "from Paris"},
		{"slice is json", "${{ memory.tags }}", `["a","b"]`},
		{"undefined is empty", "[${{ missing }}]", "[]"},
		{"coalesce", "${{ missing ?? \"friend\" }}", "friend"},
		{"builtin", "${{ upper(name) }}", "ADA"},
		{"ternary", "${{ count > 2 ? \"many\" : \"few\" }}", "many"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := e.Render(tc.tpl, data, ModeText)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestEngine_RenderHTMLEscapesValues(t *testing.T) {
	e := NewEngine()
	got, err := e.Render("<b>${{ name }}</b>", map[string]any{"name": `<script>"x"</script>`}, ModeHTML)
	require.NoError(t, err)
	assert.Equal(t, "<b>&lt;script&gt;&#34;x&#34;&lt;/script&gt;</b>", got)

	got, err = e.Render("<b>${{ name }}</b>", map[string]any{"name": "<i>"}, ModeText)
	require.NoError(t, err)
	assert.Equal(t, "<b><i></b>", got)
}

func TestEngine_RenderNilData(t *testing.T) {
	got, err := NewEngine().Render("x${{ y }}", nil, ModeText)
	require.NoError(t, err)
	assert.Equal(t, "x", got)
}

func TestEngine_RenderErrors(t *testing.T) {
	e := NewEngine()
	tests := []struct {
		name string
		tpl  string
		code string
	}{
		{"unclosed", "Hello ${{ name", schema.ErrCodeTemplate},
		{"empty", "Hello ${{  }}", schema.ErrCodeTemplate},
		{"nested", "${{ ${{ name }}", schema.ErrCodeTemplate},
		{"syntax", "${{ name + }}", schema.ErrCodeTemplate},
		{"runtime", "${{ memory.city.zip }}", schema.ErrCodeExecution},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.Render(tc.tpl, map[string]any{"name": "Ada", "memory": map[string]any{"city": nil}}, ModeText)
			require.Error(t, err)
			assert.True(t, schema.HasCode(err, tc.code), "got %v", err)
		})
	}
}

func TestEngine_Cache(t *testing.T) {
	e := NewEngine()
	for _, name := range []string{"a", "b", "c"} {
		_, err := e.Render("${{ name }}", map[string]any{"name": name}, ModeText)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, e.CacheSize())
}

func TestEngine_Concurrent(t *testing.T) {
	e := NewEngine()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got, err := e.Render("${{ n + 1 }}", map[string]any{"n": i}, ModeText)
			assert.NoError(t, err)
			assert.NotEmpty(t, got)
		}(i)
	}
	wg.Wait()
}

func TestMode_String(t *testing.T) {
	assert.Equal(t, "text", ModeText.String())
	assert.Equal(t, "html", ModeHTML.String())
}
