package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	mcp "github.com/MegaGrindStone/mcp-cli"
)

func runREPL(ctx context.Context, client *mcp.Client) error {
	fmt.Println("Entering interactive mode. Type 'help' for commands, 'exit' to quit.")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			break
		}
		if input == "help" {
			printREPLHelp()
			continue
		}

		parts := strings.SplitN(input, " ", 3)

		var err error
		switch parts[0] {
		case "tools":
			err = runTools(ctx, client, optionalArg(parts, 1))
		case "resources":
			err = runResources(ctx, client, optionalArg(parts, 1))
		case "prompts":
			err = runPrompts(ctx, client, optionalArg(parts, 1))
		case "call":
			if len(parts) < 2 {
				fmt.Println("Usage: call <tool> [args]")
				continue
			}
			err = runCall(ctx, client, parts[1], jsonArg(parts, 2))
		case "read":
			if len(parts) < 2 {
				fmt.Println("Usage: read <uri>")
				continue
			}
			err = runRead(ctx, client, parts[1])
		case "prompt":
			if len(parts) < 2 {
				fmt.Println("Usage: prompt <name> [args]")
				continue
			}
			err = runPrompt(ctx, client, parts[1], jsonArg(parts, 2))
		default:
			fmt.Printf("Unknown command: %s. Type 'help' for available commands.\n", parts[0])
			continue
		}

		// Command errors are reported and the loop continues; only a dead
		// session ends interactive mode.
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %s\n", renderError(err))
			if client.State() != mcp.StateReady {
				return err
			}
		}
	}

	fmt.Println("Exiting interactive mode")
	return scanner.Err()
}

func printREPLHelp() {
	fmt.Println("Available commands:")
	fmt.Println("  tools [pattern] - List available tools")
	fmt.Println("  resources [pattern] - List available resources")
	fmt.Println("  prompts [pattern] - List available prompts")
	fmt.Println("  call <tool> [args] - Call a tool")
	fmt.Println("  read <uri> - Read a resource")
	fmt.Println("  prompt <name> [args] - Get a prompt")
	fmt.Println("  help - Show this help")
	fmt.Println("  exit - Exit interactive mode")
}
