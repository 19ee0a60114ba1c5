// Command smoke walks a running server through a short scripted negotiation.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"
)

var script = []string{
	"hi I'm Alex, what's your best price?",
	"that's a bit steep, I'll give you $85",
	"how about 90?",
	"thanks!",
}

type client struct {
	baseURL string
	token   string
	http    *http.Client
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "server base URL")
	apiKey := flag.String("key", envOr("API_KEY", "buyer"), "API key")
	apiSecret := flag.String("secret", envOr("API_SECRET", "haggle"), "API secret")
	audioPath := flag.String("audio", "", "optional LINEAR16 16kHz recording to send as a voice message")
	flag.Parse()

	fmt.Println("🚀 Starting negotiation smoke test...")
	c := &client{baseURL: *baseURL, http: &http.Client{Timeout: 60 * time.Second}}

	if err := c.login(*apiKey, *apiSecret); err != nil {
		log.Fatalf("Failed to get JWT token: %v", err)
	}
	fmt.Println("✅ JWT token obtained")

	var session struct {
		SessionID string `json:"session_id"`
		Message   string `json:"message"`
	}
	if err := c.call(http.MethodPost, "/api/v1/sessions", "", nil, &session); err != nil {
		log.Fatalf("Failed to open session: %v", err)
	}
	fmt.Printf("🧾 %s (session %s)\n", session.Message, session.SessionID)

	for _, line := range script {
		body, _ := json.Marshal(map[string]string{"text": line})
		var reply struct {
			Text    string `json:"text"`
			Summary struct {
				CurrentOffer float64 `json:"current_offer"`
				ProgressText string  `json:"progress_text"`
			} `json:"summary"`
		}
		if err := c.call(http.MethodPost, "/api/v1/sessions/"+session.SessionID+"/messages", "application/json", body, &reply); err != nil {
			log.Fatalf("Turn %q failed: %v", line, err)
		}
		fmt.Printf("\n👤 %s\n🤖 %s\n📊 offer $%.2f, progress %s\n", line, reply.Text, reply.Summary.CurrentOffer, reply.Summary.ProgressText)
	}

	if *audioPath != "" {
		audio, err := os.ReadFile(*audioPath)
		if err != nil {
			log.Fatalf("Failed to read audio file: %v", err)
		}
		var out json.RawMessage
		if err := c.call(http.MethodPost, "/api/v1/sessions/"+session.SessionID+"/audio", "audio/l16", audio, &out); err != nil {
			log.Fatalf("Voice turn failed: %v", err)
		}
		fmt.Printf("\n🎙️ %s\n", out)
	}

	if err := c.call(http.MethodDelete, "/api/v1/sessions/"+session.SessionID, "", nil, nil); err != nil {
		log.Fatalf("Failed to close session: %v", err)
	}
	fmt.Println("\n✅ Negotiation smoke test completed successfully!")
}

func (c *client) login(key, secret string) error {
	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/api/v1/auth/token", nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-API-Key", key)
	req.Header.Set("X-API-Secret", secret)

	var out struct {
		Token string `json:"token"`
	}
	if err := c.do(req, &out); err != nil {
		return err
	}
	c.token = out.Token
	return nil
}

func (c *client) call(method, path, contentType string, body []byte, out interface{}) error {
	req, err := http.NewRequest(method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return c.do(req, out)
}

func (c *client) do(req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("status %d: %s", resp.StatusCode, body)
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	return json.Unmarshal(body, out)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
