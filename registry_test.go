package mcp

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestRegistryReplacesWholesale(t *testing.T) {
	r := NewRegistry()

	r.setTools([]Tool{{Name: "fs_read"}, {Name: "fs_write"}})
	r.setTools([]Tool{{Name: "web_search"}})

	tools := r.Tools()
	if len(tools) != 1 {
		t.Fatalf("Tools() returned %d entries, want 1", len(tools))
	}
	if tools[0].Name != "web_search" {
		t.Fatalf("Tools()[0].Name = %q, want web_search", tools[0].Name)
	}

	if _, ok := r.Tool("fs_read"); ok {
		t.Fatal("Tool(fs_read) still present after replacement")
	}
	if _, ok := r.Tool("web_search"); !ok {
		t.Fatal("Tool(web_search) not found after replacement")
	}
}

func TestRegistryFilterTools(t *testing.T) {
	r := NewRegistry()
	r.setTools([]Tool{{Name: "fs_read"}, {Name: "fs_write"}, {Name: "web_search"}})

	tools, err := r.FilterTools("fs_*")
	if err != nil {
		t.Fatalf("FilterTools() failed: %v", err)
	}
	if len(tools) != 2 {
		t.Fatalf("FilterTools(fs_*) returned %d entries, want 2", len(tools))
	}

	if _, err := r.FilterTools("["); err == nil {
		t.Fatal("FilterTools with malformed pattern succeeded, want error")
	}
}

func TestRegistryFilterResources(t *testing.T) {
	r := NewRegistry()
	r.setResources([]Resource{
		{URI: "file:///tmp/a.txt", Name: "scratch"},
		{URI: "https://example.com/doc", Name: "doc"},
	})

	// Pattern matches on URI.
	resources, err := r.FilterResources("file://*")
	if err != nil {
		t.Fatalf("FilterResources() failed: %v", err)
	}
	if len(resources) != 1 || resources[0].Name != "scratch" {
		t.Fatalf("FilterResources(file://*) = %v, want the scratch resource", resources)
	}

	// Pattern matches on name too.
	resources, err = r.FilterResources("doc")
	if err != nil {
		t.Fatalf("FilterResources() failed: %v", err)
	}
	if len(resources) != 1 || resources[0].Name != "doc" {
		t.Fatalf("FilterResources(doc) = %v, want the doc resource", resources)
	}
}

func TestRegistryFilterPrompts(t *testing.T) {
	r := NewRegistry()
	r.setPrompts([]Prompt{{Name: "summarize"}, {Name: "translate"}})

	prompts, err := r.FilterPrompts("sum*")
	if err != nil {
		t.Fatalf("FilterPrompts() failed: %v", err)
	}
	if len(prompts) != 1 || prompts[0].Name != "summarize" {
		t.Fatalf("FilterPrompts(sum*) = %v, want summarize", prompts)
	}
}

func TestValidateToolArgs(t *testing.T) {
	schema := json.RawMessage(`{
		"type": "object",
		"properties": {
			"message": { "type": "string" }
		},
		"required": ["message"]
	}`)

	r := NewRegistry()
	r.setTools([]Tool{
		{Name: "echo", InputSchema: schema},
		{Name: "noop"},
	})

	if err := r.ValidateToolArgs("echo", json.RawMessage(`{"message":"hi"}`)); err != nil {
		t.Fatalf("valid arguments rejected: %v", err)
	}

	err := r.ValidateToolArgs("echo", json.RawMessage(`{}`))
	if !errors.Is(err, ErrInvalidArguments) {
		t.Fatalf("missing required property: got %v, want ErrInvalidArguments", err)
	}

	err = r.ValidateToolArgs("echo", json.RawMessage(`{"message":42}`))
	if !errors.Is(err, ErrInvalidArguments) {
		t.Fatalf("wrong property type: got %v, want ErrInvalidArguments", err)
	}

	// The check is advisory: tools without a schema, and tools the cache
	// does not know, always pass.
	if err := r.ValidateToolArgs("noop", json.RawMessage(`{"anything":true}`)); err != nil {
		t.Fatalf("schemaless tool rejected: %v", err)
	}
	if err := r.ValidateToolArgs("not_cached", json.RawMessage(`{}`)); err != nil {
		t.Fatalf("unknown tool rejected: %v", err)
	}
}
