// Copyright (C) 2025 Dyne.org foundation
// designed, written and maintained by Denis Roio <jaromil@dyne.org>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	apperrors "fsroots/internal/errors"
	"fsroots/internal/fsaccess"
	"fsroots/internal/roots"
)

// ExecutorFunc is the function signature for tool implementations
type ExecutorFunc func(ctx context.Context, args map[string]interface{}) (string, error)

// ToolResult represents the result of a tool execution. Result holds the
// caller-facing text, which for failures is the rendered error.
type ToolResult struct {
	Function string
	Result   string
	Error    error
}

// Permission describes the policy for a tool.
type Permission struct {
	Allowed bool
}

// Policy lists tools that are switched off. Tools not named are allowed.
type Policy struct {
	Deny map[string]bool
}

// PolicyFromDenyList builds a policy from a list of disabled tool names.
func PolicyFromDenyList(deny []string) Policy {
	denyMap := make(map[string]bool, len(deny))
	for _, name := range deny {
		denyMap[name] = true
	}
	return Policy{Deny: denyMap}
}

// ListDefaults holds list_dir argument defaults used when a call omits them.
type ListDefaults struct {
	MaxEntries int
	Format     fsaccess.Format
	Detailed   bool
}

// DefaultListDefaults mirrors the documented tool defaults.
func DefaultListDefaults() ListDefaults {
	return ListDefaults{
		MaxEntries: fsaccess.DefaultMaxEntries,
		Format:     fsaccess.FormatText,
	}
}

// Options configures a Registry.
type Options struct {
	Policy     Policy
	Defaults   ListDefaults
	RateLimits RateLimitConfig
	Timeouts   TimeoutConfig
	Logger     *zerolog.Logger
}

// Registry holds the available tools bound to one root set.
type Registry struct {
	mu          sync.RWMutex
	tools       map[string]Tool
	permissions map[string]Permission
	budgets     map[string]*callBudget
	closed      bool

	roots      *roots.Set
	defaults   ListDefaults
	rateLimits RateLimitConfig
	timeouts   TimeoutConfig
	logger     zerolog.Logger
}

// NewRegistry creates a registry serving the given root set and registers
// the built-in tools. A nil set yields a registry that can describe its
// tools but rejects every call with a configuration error.
func NewRegistry(set *roots.Set, opts Options) *Registry {
	r := &Registry{
		tools:       make(map[string]Tool),
		permissions: make(map[string]Permission),
		budgets:     make(map[string]*callBudget),
		roots:       set,
		defaults:    normalizeListDefaults(opts.Defaults),
		rateLimits:  opts.RateLimits,
		timeouts:    opts.Timeouts,
		logger:      zerolog.Nop(),
	}
	if opts.Logger != nil {
		r.logger = *opts.Logger
	}

	registerBuiltInTools(r)
	r.applyPolicy(opts.Policy)

	return r
}

func normalizeListDefaults(d ListDefaults) ListDefaults {
	d.MaxEntries = fsaccess.ListOptions{MaxEntries: d.MaxEntries}.EffectiveMax()
	if d.Format == "" {
		d.Format = fsaccess.FormatText
	}
	return d
}

// RegisterTool adds a tool to the registry. New tools are allowed.
func (r *Registry) RegisterTool(tool Tool) error {
	if tool == nil || tool.Name() == "" {
		return fmt.Errorf("tool must have a name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[tool.Name()]; exists {
		return fmt.Errorf("tool %q already registered", tool.Name())
	}
	r.tools[tool.Name()] = tool
	r.permissions[tool.Name()] = Permission{Allowed: true}
	r.budgets[tool.Name()] = newCallBudget(tool.Name(), r.rateLimits, r.timeouts)
	return nil
}

// applyPolicy merges the provided policy into the registry permissions.
func (r *Registry) applyPolicy(policy Policy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name := range r.tools {
		r.permissions[name] = Permission{Allowed: !policy.Deny[name]}
	}
}

// SetAllowed toggles whether a tool is allowed.
func (r *Registry) SetAllowed(name string, allowed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.permissions[name] = Permission{Allowed: allowed}
}

// GetPermission returns the current permission entry for a tool.
func (r *Registry) GetPermission(name string) Permission {
	return r.getPermission(name)
}

// Admit applies a tool's deny policy and rate budget to work done on its
// behalf outside Execute. A nil error consumes one call.
func (r *Registry) Admit(name string) error {
	if _, err := r.lookup(name); err != nil {
		return err
	}
	return r.take(name)
}

func (r *Registry) lookup(name string) (Tool, error) {
	if r.isClosed() {
		return nil, apperrors.Wrap(apperrors.CodeToolExecution, "tool registry is closed", ErrRegistryClosed)
	}
	tool, exists := r.getTool(name)
	if !exists {
		return nil, apperrors.Wrap(apperrors.CodeInvalidArguments,
			fmt.Sprintf("unknown tool %q (available: %v)", name, r.GetToolNames()), ErrToolNotFound)
	}
	if !r.getPermission(name).Allowed {
		return nil, NewPermissionError(name, "disabled by configuration")
	}
	return tool, nil
}

func (r *Registry) take(name string) error {
	if err := r.getBudget(name).take(time.Now()); err != nil {
		return apperrors.Wrap(apperrors.CodeRateLimited, fmt.Sprintf("tool %s", name), err)
	}
	return nil
}

// Roots returns the root set the registry serves.
func (r *Registry) Roots() *roots.Set {
	return r.roots
}

// Defaults returns the list_dir defaults in effect.
func (r *Registry) Defaults() ListDefaults {
	return r.defaults
}

// GetToolNames returns the names of all tools, sorted.
func (r *Registry) GetToolNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetTools returns all tools sorted by name.
func (r *Registry) GetTools() []Tool {
	names := r.GetToolNames()
	r.mu.RLock()
	defer r.mu.RUnlock()
	tools := make([]Tool, 0, len(names))
	for _, name := range names {
		tools = append(tools, r.tools[name])
	}
	return tools
}

// OpenAITools returns the allowed tools as OpenAI tool definitions.
func (r *Registry) OpenAITools() []openai.Tool {
	tools := r.GetTools()
	defs := make([]openai.Tool, 0, len(tools))
	for _, tool := range tools {
		if !r.getPermission(tool.Name()).Allowed {
			continue
		}
		defs = append(defs, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        tool.Name(),
				Description: tool.Description(),
				Parameters:  tool.Parameters(),
			},
		})
	}
	return defs
}

// Execute runs the named tool. The result is never nil; failures carry a
// coded error and their rendered text.
func (r *Registry) Execute(ctx context.Context, function string, args map[string]interface{}) *ToolResult {
	start := time.Now()
	result := r.execute(ctx, function, args)

	event := r.logger.Info()
	if result.Error != nil {
		event = r.logger.Warn().Str("code", string(errorCode(result.Error)))
	}
	event.Str("tool", function).Dur("duration", time.Since(start)).Msg("Tool call finished")

	return result
}

func (r *Registry) execute(ctx context.Context, function string, args map[string]interface{}) *ToolResult {
	tool, err := r.lookup(function)
	if err != nil {
		return failedResult(function, err)
	}

	if err := tool.Validate(args); err != nil {
		return failedResult(function, apperrors.Wrap(apperrors.CodeInvalidArguments, err.Error(), ErrInvalidArguments))
	}

	if err := r.take(function); err != nil {
		return failedResult(function, err)
	}

	output, err := r.run(ctx, tool, args)
	if err != nil {
		return failedResult(function, err)
	}
	return &ToolResult{Function: function, Result: output}
}

// run executes the tool, abandoning it when a configured timeout elapses.
// Filesystem calls already in flight finish in the background.
func (r *Registry) run(ctx context.Context, tool Tool, args map[string]interface{}) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	timeout := r.getBudget(tool.Name()).deadline()
	if timeout <= 0 {
		return tool.Execute(ctx, args)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		output string
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		output, err := tool.Execute(ctx, args)
		done <- outcome{output: output, err: err}
	}()

	select {
	case out := <-done:
		return out.output, out.err
	case <-ctx.Done():
		return "", apperrors.Wrap(apperrors.CodeTimeout,
			fmt.Sprintf("tool %s did not finish within %s", tool.Name(), timeout), ctx.Err())
	}
}

// ExecuteOpenAIToolCall executes an OpenAI tool call payload.
func (r *Registry) ExecuteOpenAIToolCall(ctx context.Context, call openai.ToolCall) *ToolResult {
	name := call.Function.Name
	if name == "" {
		return failedResult("unknown_tool", apperrors.Wrap(apperrors.CodeInvalidArguments,
			"tool call missing function name", ErrInvalidArguments))
	}
	args, err := parseToolArgs(call.Function.Arguments)
	if err != nil {
		return failedResult(name, apperrors.Wrap(apperrors.CodeInvalidArguments,
			fmt.Sprintf("invalid tool arguments: %v", err), ErrInvalidArguments))
	}
	return r.Execute(ctx, name, args)
}

// Close rejects every later call. Calls already running are not
// interrupted.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
}

func (r *Registry) isClosed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.closed
}

func failedResult(function string, err error) *ToolResult {
	return &ToolResult{
		Function: function,
		Result:   RenderError(err),
		Error:    err,
	}
}

// getTool safely retrieves a tool definition.
func (r *Registry) getTool(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// getPermission safely fetches permissions for a tool.
func (r *Registry) getPermission(name string) Permission {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if perm, ok := r.permissions[name]; ok {
		return perm
	}
	return Permission{Allowed: false}
}

func (r *Registry) getBudget(name string) *callBudget {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.budgets[name]
}

// parseToolArgs decodes a JSON argument object; blank input means no arguments.
func parseToolArgs(argsJSON string) (map[string]interface{}, error) {
	args := map[string]interface{}{}
	if len(argsJSON) == 0 {
		return args, nil
	}
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return nil, err
	}
	return args, nil
}
