package mcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBehaviorServer(t *testing.T) {
	s := NewBehaviorServer(BehaviorServerDeps{})
	require.NotNil(t, s)
	assert.NotNil(t, s.mcpServer)
	assert.NotNil(t, s.logger)
	assert.NotNil(t, s.resolver)
	assert.Same(t, s.mcpServer, s.MCPServer())
}

func TestToolRegistration(t *testing.T) {
	s := NewBehaviorServer(BehaviorServerDeps{})

	tools := s.mcpServer.ListTools()
	require.Len(t, tools, 3)

	for _, name := range []string{"behaviors.evaluate", "behaviors.resolve", "behaviors.history"} {
		tool := s.mcpServer.GetTool(name)
		assert.NotNil(t, tool, "tool %s should be registered", name)
	}
}

func TestToolDefinitions(t *testing.T) {
	tests := []struct {
		name        string
		toolName    string
		description string
	}{
		{"evaluate", "behaviors.evaluate", "Evaluate a conversation step against the loaded behavior set"},
		{"resolve", "behaviors.resolve", "Resolve a rule node into an expression and optionally match it against facts"},
		{"history", "behaviors.history", "Read the trigger log of a conversation"},
	}

	s := NewBehaviorServer(BehaviorServerDeps{})

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tool := s.mcpServer.GetTool(tc.toolName)
			require.NotNil(t, tool)
			assert.Equal(t, tc.description, tool.Tool.Description)
		})
	}
}
