package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/rendis/behaviors/internal/behavior"
	"github.com/rendis/behaviors/internal/facts"
	"github.com/rendis/behaviors/internal/templating"
	"github.com/rendis/behaviors/pkg/schema"
)

// handleEvaluate evaluates a conversation step against the loaded behavior set.
func (s *BehaviorServer) handleEvaluate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.engine == nil {
		return mcp.NewToolResultError("no behavior set loaded"), nil
	}
	stepFacts := mcp.ParseStringMap(req, "facts", nil)
	if stepFacts == nil {
		return mcp.NewToolResultError("facts is required"), nil
	}
	memory := mcp.ParseStringMap(req, "memory", nil)

	step := behavior.Step{
		ConversationID: req.GetString("conversation_id", ""),
		StepID:         req.GetString("step_id", ""),
		Facts:          stepFacts,
	}
	if len(memory) > 0 {
		step.Memory = memory
	}

	res, err := s.engine.Evaluate(ctx, step)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("evaluation failed: %v", err)), nil
	}
	if !req.GetBool("explain", false) {
		res.Failures = nil
	}

	out := map[string]any{
		"evaluation_id": res.EvaluationID,
		"set_id":        res.SetID,
		"triggered":     res.Triggered,
		"behavior_ids":  res.BehaviorIDs(),
	}
	if res.Failures != nil {
		out["failures"] = res.Failures
	}

	if s.templates != nil && len(res.Triggered) > 0 {
		data := templating.FromResult(res, mcp.ParseStringMap(req, "context", nil))
		if err := s.templates.Apply(ctx, data, memory); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("templating failed: %v", err)), nil
		}
		out["rendered"] = renderedEntries(data)
	}

	return marshalResult(out)
}

// handleResolve resolves a single rule node and optionally matches it.
func (s *BehaviorServer) handleResolve(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw := mcp.ParseStringMap(req, "node", nil)
	if raw == nil {
		return mcp.NewToolResultError("node is required"), nil
	}
	node, err := decodeNode(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid node: %v", err)), nil
	}

	expr, err := s.resolver.Resolve(node)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("resolution failed: %v", err)), nil
	}

	out := map[string]any{
		"expression": expr.String(),
		"kind":       expr.Kind.String(),
		"domain":     expr.Domain,
	}

	if stepFacts := mcp.ParseStringMap(req, "facts", nil); stepFacts != nil {
		src := facts.Map(stepFacts)
		out["matched"] = expr.Evaluate(src)
		if failures := expr.Explain(src); len(failures) > 0 {
			out["failures"] = failures
		}
	}
	return marshalResult(out)
}

// handleHistory returns a conversation's trigger log and summary.
func (s *BehaviorServer) handleHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.history == nil {
		return mcp.NewToolResultError("trigger log is disabled"), nil
	}
	conversationID, err := req.RequireString("conversation_id")
	if err != nil {
		return mcp.NewToolResultError("conversation_id is required"), nil
	}
	limit := extractInt(req.GetArguments(), "limit", 20)

	evs, err := s.history.History(ctx, conversationID, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("history query failed: %v", err)), nil
	}
	summary, err := s.history.Summarize(ctx, conversationID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("history summary failed: %v", err)), nil
	}

	return marshalResult(map[string]any{
		"evaluations": evs,
		"summary":     summary,
	})
}

// --- Internal helpers ---

func decodeNode(raw map[string]any) (*schema.Node, error) {
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var node schema.Node
	if err := json.Unmarshal(b, &node); err != nil {
		return nil, err
	}
	if node.Name == "" {
		return nil, schema.NewError(schema.ErrCodeValidation, "node name is required")
	}
	return &node, nil
}

func renderedEntries(data *templating.StepData) map[string]any {
	out := make(map[string]any)
	for _, prefix := range []string{templating.PrefixOutput, templating.PrefixQuickReplies} {
		for _, e := range data.All(prefix) {
			out[e.Key] = e.Value
		}
	}
	return out
}

func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultJSON(json.RawMessage(data))
}

func extractInt(args map[string]any, key string, defaultVal int) int {
	if args == nil {
		return defaultVal
	}
	v, ok := args[key]
	if !ok {
		return defaultVal
	}
	switch val := v.(type) {
	case float64:
		return int(val)
	case int:
		return val
	case string:
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}
