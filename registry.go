package mcp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gobwas/glob"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Registry is the client-side cache of the server's capability lists. It
// holds the tools, resources, and prompts from the most recent list calls
// for quick redisplay. The cache is advisory only: it is never consulted
// for correctness, staleness between explicit refreshes is expected, and a
// fresh list call replaces the corresponding set wholesale.
type Registry struct {
	mu        sync.RWMutex
	tools     []Tool
	resources []Resource
	prompts   []Prompt
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Tools returns the last fetched tool list, or nil if never fetched.
func (r *Registry) Tools() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]Tool, len(r.tools))
	copy(tools, r.tools)
	return tools
}

// Resources returns the last fetched resource list, or nil if never fetched.
func (r *Registry) Resources() []Resource {
	r.mu.RLock()
	defer r.mu.RUnlock()

	resources := make([]Resource, len(r.resources))
	copy(resources, r.resources)
	return resources
}

// Prompts returns the last fetched prompt list, or nil if never fetched.
func (r *Registry) Prompts() []Prompt {
	r.mu.RLock()
	defer r.mu.RUnlock()

	prompts := make([]Prompt, len(r.prompts))
	copy(prompts, r.prompts)
	return prompts
}

// Tool looks up a cached tool by name.
func (r *Registry) Tool(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, t := range r.tools {
		if t.Name == name {
			return t, true
		}
	}
	return Tool{}, false
}

// FilterTools returns the cached tools whose names match the given glob
// pattern, e.g. "fs_*".
func (r *Registry) FilterTools(pattern string) ([]Tool, error) {
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var tools []Tool
	for _, t := range r.tools {
		if g.Match(t.Name) {
			tools = append(tools, t)
		}
	}
	return tools, nil
}

// FilterResources returns the cached resources whose URI or name matches
// the given glob pattern.
func (r *Registry) FilterResources(pattern string) ([]Resource, error) {
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var resources []Resource
	for _, res := range r.resources {
		if g.Match(res.URI) || g.Match(res.Name) {
			resources = append(resources, res)
		}
	}
	return resources, nil
}

// FilterPrompts returns the cached prompts whose names match the given
// glob pattern.
func (r *Registry) FilterPrompts(pattern string) ([]Prompt, error) {
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var prompts []Prompt
	for _, p := range r.prompts {
		if g.Match(p.Name) {
			prompts = append(prompts, p)
		}
	}
	return prompts, nil
}

// ValidateToolArgs checks args against the cached input schema for the
// named tool. This is fast local feedback only, never authoritative: an
// unknown tool or a tool without a schema passes, and the server remains
// free to reject what the cache accepted.
func (r *Registry) ValidateToolArgs(name string, args json.RawMessage) error {
	tool, ok := r.Tool(name)
	if !ok || len(tool.InputSchema) == 0 {
		return nil
	}
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("tool.json", bytes.NewReader(tool.InputSchema)); err != nil {
		return fmt.Errorf("failed to load input schema for %q: %w", name, err)
	}
	schema, err := compiler.Compile("tool.json")
	if err != nil {
		return fmt.Errorf("failed to compile input schema for %q: %w", name, err)
	}

	var doc any
	if err := json.Unmarshal(args, &doc); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidArguments, err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidArguments, err)
	}
	return nil
}

func (r *Registry) setTools(tools []Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tools = tools
}

func (r *Registry) setResources(resources []Resource) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.resources = resources
}

func (r *Registry) setPrompts(prompts []Prompt) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.prompts = prompts
}
