// Package command provides a text command system for the label engine
package command

import (
	"fmt"
	"strings"

	"github.com/thereceipt/label-engine/internal/engine"
)

// Executor executes commands
type Executor struct {
	engine *engine.Engine
}

// NewExecutor creates a new command executor
func NewExecutor(e *engine.Engine) *Executor {
	return &Executor{engine: e}
}

// Result represents the result of executing a command
type Result struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

func failure(format string, args ...interface{}) *Result {
	return &Result{
		Success: false,
		Error:   fmt.Sprintf(format, args...),
	}
}

// Execute executes a command string and returns a result
func (e *Executor) Execute(cmdStr string) *Result {
	parts := parseCommand(cmdStr)
	if len(parts) == 0 {
		return failure("empty command")
	}

	command := parts[0]
	args := parts[1:]

	switch command {
	case "template":
		return e.handleTemplate(args)
	case "object":
		return e.handleObject(args)
	case "undo":
		return e.handleHistory(true)
	case "redo":
		return e.handleHistory(false)
	case "status":
		return e.handleStatus()
	case "records":
		return e.handleRecords(args)
	case "columns":
		return e.handleColumns(args)
	case "export":
		return e.handleExport(args)
	case "job":
		return e.handleJob(args)
	case "printers":
		return e.handlePrinters()
	case "help":
		return e.handleHelp()
	default:
		return failure("unknown command: %s. Type 'help' for available commands", command)
	}
}

// parseCommand parses a command string into parts, handling quoted strings
func parseCommand(cmdStr string) []string {
	cmdStr = strings.TrimSpace(cmdStr)
	if cmdStr == "" {
		return []string{}
	}

	var parts []string
	var current strings.Builder
	inQuotes := false
	quoteChar := byte(0)
	// Tracks "" so an empty quoted argument still counts
	quoted := false

	for i := 0; i < len(cmdStr); i++ {
		char := cmdStr[i]

		switch {
		case char == '"' || char == '\'':
			if !inQuotes {
				inQuotes = true
				quoted = true
				quoteChar = char
			} else if char == quoteChar {
				inQuotes = false
				quoteChar = 0
			} else {
				current.WriteByte(char)
			}
		case (char == ' ' || char == '\t') && !inQuotes:
			if current.Len() > 0 || quoted {
				parts = append(parts, current.String())
				current.Reset()
				quoted = false
			}
		default:
			current.WriteByte(char)
		}
	}

	if current.Len() > 0 || quoted {
		parts = append(parts, current.String())
	}

	return parts
}
