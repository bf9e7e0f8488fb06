package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"kurator/internal/api"
	"kurator/internal/config"
)

// AddTopic registers a chat topic through the running admin API. The
// topic's permission label is what curator tokens must carry to see
// chats filed under it.
func AddTopic(title, permission string, cfg *config.Config) error {
	reqBody, err := json.Marshal(api.AddTopicRequest{Title: title, Permission: permission})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("http://%s/admin/topics", cfg.AdminAddr)
	resp, err := http.Post(url, "application/json", bytes.NewBuffer(reqBody))
	if err != nil {
		return fmt.Errorf("failed to call admin API: %w. Is the server running?", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("failed to add topic (Status: %d): %s", resp.StatusCode, string(body))
	}

	var result api.AddTopicResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	fmt.Printf("\nTopic Created Successfully!\n")
	fmt.Printf("ID:         %s\n", result.ID)
	fmt.Printf("Title:      %s\n", result.Title)
	fmt.Printf("Permission: %s\n\n", result.Permission)
	fmt.Println("Grant this permission in curator tokens to route the topic to them.")
	return nil
}
