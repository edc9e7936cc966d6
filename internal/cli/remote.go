package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

const defaultServerURL = "http://localhost:12212"

// CommandResult is the /command response of a running server
type CommandResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`

	// Data holds every other field of the response
	Data map[string]interface{} `json:"-"`
}

func newRemoteCmd() *cobra.Command {
	var (
		serverURL string
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "remote <command> [args...]",
		Short: "Run a session command on a running server",
		Long: `Send one command line to a running label engine and print the reply.
The command language is the one typed into the dashboard; run "remote help" for
the list.`,
		Example: `  labelctl remote status
  labelctl remote object add text "Hello {{name}}"
  labelctl remote export 2-3
  labelctl remote --server http://printhost:12212 job list`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if env := os.Getenv("LABEL_SERVER"); env != "" && !cmd.Flags().Changed("server") {
				serverURL = env
			}

			result, err := executeCommand(serverURL, joinCommand(args))
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(result.Data)
			}
			if !result.Success {
				if result.Error != "" {
					return fmt.Errorf("%s", result.Error)
				}
				return fmt.Errorf("%s", result.Message)
			}
			printResult(cmd.OutOrStdout(), result)
			return nil
		},
	}

	cmd.Flags().StringVarP(&serverURL, "server", "s", defaultServerURL, "Server URL")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw response")

	return cmd
}

// joinCommand quotes arguments that the server-side parser would split
func joinCommand(args []string) string {
	parts := make([]string, len(args))
	for i, a := range args {
		if a == "" || strings.ContainsAny(a, " \t\"") {
			a = `"` + strings.ReplaceAll(a, `"`, `'`) + `"`
		}
		parts[i] = a
	}
	return strings.Join(parts, " ")
}

func executeCommand(serverURL, command string) (*CommandResult, error) {
	url := strings.TrimSuffix(serverURL, "/") + "/command"

	body, err := json.Marshal(map[string]string{"command": command})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	result := &CommandResult{Data: fields}
	result.Success, _ = fields["success"].(bool)
	result.Message, _ = fields["message"].(string)
	result.Error, _ = fields["error"].(string)
	return result, nil
}

func printResult(w io.Writer, result *CommandResult) {
	if result.Message != "" {
		fmt.Fprintln(w, result.Message)
	}

	keys := make([]string, 0, len(result.Data))
	for key := range result.Data {
		switch key {
		case "success", "message", "error":
		default:
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	for _, key := range keys {
		switch v := result.Data[key].(type) {
		case []interface{}:
			fmt.Fprintf(w, "\n%s:\n", key)
			for _, item := range v {
				fmt.Fprintf(w, "  %s\n", describe(item))
			}
		default:
			fmt.Fprintf(w, "%s: %s\n", key, describe(v))
		}
	}
}

func describe(v interface{}) string {
	switch item := v.(type) {
	case map[string]interface{}:
		b, _ := json.Marshal(item)
		for _, key := range []string{"id", "uri", "name"} {
			if id, ok := item[key].(string); ok {
				return fmt.Sprintf("%-12s %s", id, b)
			}
		}
		return string(b)
	case string:
		return item
	default:
		b, _ := json.Marshal(item)
		return string(b)
	}
}
