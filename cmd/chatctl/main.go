// chatctl is a small operator CLI for exercising the chat API from a
// terminal: ask a question, inspect the citations, reset a conversation.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	serverURL      string
	conversationID string
	jsonOutput     bool
)

var rootCmd = &cobra.Command{
	Use:   "chatctl",
	Short: "Chat orchestrator CLI",
	Long: `chatctl talks to a running chat-orchestrator instance.

Example usage:
  chatctl ask "what is this medicine for"
  chatctl ask --conversation alice "and the dosage?"
  chatctl reset --conversation alice`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var askCmd = &cobra.Command{
	Use:   "ask [message]",
	Short: "Ask one conversational turn",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Drop a conversation's history",
	RunE:  runReset,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", envOr("CHATCTL_SERVER", "http://localhost:9020"), "orchestrator base URL")
	rootCmd.PersistentFlags().StringVarP(&conversationID, "conversation", "c", "", "conversation id (default session when empty)")
	askCmd.Flags().BoolVar(&jsonOutput, "json", false, "print the raw response")

	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(resetCmd)
}

type askResponse struct {
	Answer         string `json:"answer"`
	ConversationID string `json:"conversation_id"`
	Degraded       bool   `json:"degraded"`
	NoContext      bool   `json:"no_context"`
	Citations      []struct {
		ID             string            `json:"id"`
		TextSnippet    string            `json:"text_snippet"`
		Score          float64           `json:"score"`
		SourceMetadata map[string]string `json:"source_metadata"`
	} `json:"citations"`
}

func runAsk(cmd *cobra.Command, args []string) error {
	message := strings.Join(args, " ")

	body, err := postJSON("/v1/chat/ask", map[string]string{
		"message":         message,
		"conversation_id": conversationID,
	})
	if err != nil {
		return err
	}

	if jsonOutput {
		fmt.Println(string(body))
		return nil
	}

	var resp askResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	fmt.Println(resp.Answer)
	if resp.Degraded {
		fmt.Fprintln(os.Stderr, "note: reranker unavailable, results ordered by cosine similarity")
	}
	if len(resp.Citations) > 0 {
		fmt.Println()
		for i, c := range resp.Citations {
			source := c.SourceMetadata["source"]
			if source == "" {
				source = c.ID
			}
			fmt.Printf("[%d] %s (score %.3f)\n    %s\n", i+1, source, c.Score, c.TextSnippet)
		}
	}
	return nil
}

func runReset(cmd *cobra.Command, args []string) error {
	if _, err := postJSON("/v1/chat/reset", map[string]string{
		"conversation_id": conversationID,
	}); err != nil {
		return err
	}
	fmt.Println("conversation reset")
	return nil
}

func postJSON(path string, payload map[string]string) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	client := &http.Client{Timeout: 5 * time.Minute}
	resp, err := client.Post(serverURL+path, "application/json", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("calling %s: %w", path, err)
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned status %d: %s", path, resp.StatusCode, strings.TrimSpace(buf.String()))
	}
	return buf.Bytes(), nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
