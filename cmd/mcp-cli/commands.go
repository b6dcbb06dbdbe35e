package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	mcp "github.com/MegaGrindStone/mcp-cli"
)

func runCommand(ctx context.Context, client *mcp.Client, name string, args []string) error {
	switch name {
	case "tools":
		return runTools(ctx, client, optionalArg(args, 0))
	case "resources":
		return runResources(ctx, client, optionalArg(args, 0))
	case "prompts":
		return runPrompts(ctx, client, optionalArg(args, 0))
	case "call":
		if len(args) < 1 {
			return fmt.Errorf("usage: call <tool> [json]")
		}
		return runCall(ctx, client, args[0], jsonArg(args, 1))
	case "read":
		if len(args) < 1 {
			return fmt.Errorf("usage: read <uri>")
		}
		return runRead(ctx, client, args[0])
	case "prompt":
		if len(args) < 1 {
			return fmt.Errorf("usage: prompt <name> [json]")
		}
		return runPrompt(ctx, client, args[0], jsonArg(args, 1))
	case "interactive":
		return runREPL(ctx, client)
	default:
		return fmt.Errorf("unknown command %q, run with no arguments for usage", name)
	}
}

func optionalArg(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

func jsonArg(args []string, i int) string {
	if i < len(args) && args[i] != "" {
		return args[i]
	}
	return "{}"
}

func runTools(ctx context.Context, client *mcp.Client, pattern string) error {
	result, err := client.ListTools(ctx, mcp.ListToolsParams{})
	if err != nil {
		return err
	}

	tools := result.Tools
	if pattern != "" {
		tools, err = client.Registry().FilterTools(pattern)
		if err != nil {
			return err
		}
	}

	if len(tools) == 0 {
		fmt.Println("No tools available")
		return nil
	}
	fmt.Println("Available tools:")
	for _, t := range tools {
		fmt.Printf("  - %s: %s\n", t.Name, t.Description)
	}
	return nil
}

func runResources(ctx context.Context, client *mcp.Client, pattern string) error {
	result, err := client.ListResources(ctx, mcp.ListResourcesParams{})
	if err != nil {
		return err
	}

	resources := result.Resources
	if pattern != "" {
		resources, err = client.Registry().FilterResources(pattern)
		if err != nil {
			return err
		}
	}

	if len(resources) == 0 {
		fmt.Println("No resources available")
		return nil
	}
	fmt.Println("Available resources:")
	for _, r := range resources {
		fmt.Printf("  - %s: %s\n", r.URI, r.Description)
	}
	return nil
}

func runPrompts(ctx context.Context, client *mcp.Client, pattern string) error {
	result, err := client.ListPrompts(ctx, mcp.ListPromptsParams{})
	if err != nil {
		return err
	}

	prompts := result.Prompts
	if pattern != "" {
		prompts, err = client.Registry().FilterPrompts(pattern)
		if err != nil {
			return err
		}
	}

	if len(prompts) == 0 {
		fmt.Println("No prompts available")
		return nil
	}
	fmt.Println("Available prompts:")
	for _, p := range prompts {
		fmt.Printf("  - %s: %s\n", p.Name, p.Description)
	}
	return nil
}

func runCall(ctx context.Context, client *mcp.Client, tool, argsJSON string) error {
	raw := json.RawMessage(argsJSON)
	if !json.Valid(raw) {
		return fmt.Errorf("arguments are not valid JSON: %s", argsJSON)
	}

	// Fast local feedback against the cached input schema. Advisory only;
	// the tool is still sent even if it is unknown to the cache.
	if err := client.Registry().ValidateToolArgs(tool, raw); err != nil {
		return err
	}

	result, err := client.CallTool(ctx, mcp.CallToolParams{Name: tool, Arguments: raw})
	if err != nil {
		return err
	}

	fmt.Println("Tool result:")
	printContents(result.Content)
	if result.IsError {
		return fmt.Errorf("tool %q reported an error", tool)
	}
	return nil
}

func runRead(ctx context.Context, client *mcp.Client, uri string) error {
	result, err := client.ReadResource(ctx, mcp.ReadResourceParams{URI: uri})
	if err != nil {
		return err
	}

	fmt.Println("Resource content:")
	for _, c := range result.Contents {
		fmt.Printf("  URI: %s\n", c.URI)
		if c.MimeType != "" {
			fmt.Printf("  MIME type: %s\n", c.MimeType)
		}
		if c.Text != "" {
			fmt.Printf("  Text content: %s\n", c.Text)
		}
		if c.Blob != "" {
			fmt.Printf("  Binary content: %d bytes\n", len(c.Blob))
		}
	}
	return nil
}

func runPrompt(ctx context.Context, client *mcp.Client, name, argsJSON string) error {
	var args map[string]string
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return fmt.Errorf("arguments are not a valid JSON object of strings: %w", err)
	}

	result, err := client.GetPrompt(ctx, mcp.GetPromptParams{Name: name, Arguments: args})
	if err != nil {
		return err
	}

	fmt.Println("Prompt result:")
	if result.Description != "" {
		fmt.Printf("  Description: %s\n", result.Description)
	}
	for _, m := range result.Messages {
		fmt.Printf("  %s role:\n", m.Role)
		printContents([]mcp.Content{m.Content})
	}
	return nil
}

func printContents(contents []mcp.Content) {
	for _, c := range contents {
		switch c.Type {
		case mcp.ContentTypeText:
			fmt.Printf("  Text: %s\n", c.Text)
		case mcp.ContentTypeImage, mcp.ContentTypeAudio:
			fmt.Printf("  %s: %d bytes, type: %s\n", c.Type, len(c.Data), c.MimeType)
		case mcp.ContentTypeResource:
			if c.Resource != nil {
				fmt.Printf("  Resource: %s\n", c.Resource.URI)
			}
		default:
			fmt.Printf("  Unknown content type: %s\n", c.Type)
		}
	}
}

// renderError maps the session engine's error taxonomy to distinct,
// actionable messages. None of these conditions should ever surface as a
// hang.
func renderError(err error) string {
	switch {
	case errors.Is(err, mcp.ErrToolNotFound):
		return fmt.Sprintf("the server does not know this tool (%v); run 'tools' to see what is available", err)
	case errors.Is(err, mcp.ErrResourceNotFound):
		return fmt.Sprintf("the server does not know this resource (%v); run 'resources' to see what is available", err)
	case errors.Is(err, mcp.ErrPromptNotFound):
		return fmt.Sprintf("the server does not know this prompt (%v); run 'prompts' to see what is available", err)
	case errors.Is(err, mcp.ErrInvalidArguments):
		return fmt.Sprintf("arguments rejected: %v", err)
	case errors.Is(err, mcp.ErrRequestTimeout):
		return fmt.Sprintf("the server did not answer in time: %v", err)
	case errors.Is(err, mcp.ErrConnectionLost):
		return fmt.Sprintf("the connection to the server was lost: %v", err)
	case errors.Is(err, mcp.ErrNotConnected):
		return fmt.Sprintf("not connected to a server: %v", err)
	default:
		return err.Error()
	}
}
