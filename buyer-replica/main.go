// Command buyer-replica is an interactive terminal buyer for the negotiation socket.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gorilla/websocket"
)

type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type summary struct {
	CurrentOffer float64 `json:"current_offer"`
	DeltaText    string  `json:"delta_text"`
	ProgressText string  `json:"progress_text"`
	Phase        string  `json:"phase"`
}

func main() {
	server := flag.String("server", "localhost:8080", "negotiation server host:port")
	apiKey := flag.String("key", os.Getenv("API_KEY"), "API key used to obtain a token")
	apiSecret := flag.String("secret", os.Getenv("API_SECRET"), "API secret used to obtain a token")
	flag.Parse()

	token, err := fetchToken(*server, *apiKey, *apiSecret)
	if err != nil {
		log.Fatalf("Failed to get token: %v", err)
	}

	u := url.URL{Scheme: "ws", Host: *server, Path: "/ws", RawQuery: "token=" + url.QueryEscape(token)}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("Failed to connect to server: %v", err)
	}
	defer conn.Close()

	go func() {
		for {
			var f frame
			if err := conn.ReadJSON(&f); err != nil {
				log.Println("Connection closed:", err)
				os.Exit(0)
			}
			render(f)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		conn.Close()
		os.Exit(0)
	}()

	scanner := bufio.NewScanner(os.Stdin)
	fmt.Println("Let's negotiate! (type 'exit' to quit)")
	for scanner.Scan() {
		text := strings.TrimSpace(scanner.Text())
		if text == "exit" {
			break
		}
		if text == "" {
			continue
		}
		if err := conn.WriteJSON(map[string]string{"text": text}); err != nil {
			log.Println("Error sending message:", err)
			break
		}
	}
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func fetchToken(server, key, secret string) (string, error) {
	req, err := http.NewRequest(http.MethodPost, "http://"+server+"/api/v1/auth/token", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("X-API-Key", key)
	req.Header.Set("X-API-Secret", secret)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token request failed: %s", resp.Status)
	}

	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}
	return body.Token, nil
}

func render(f frame) {
	switch f.Type {
	case "welcome":
		var w struct {
			Message string `json:"message"`
		}
		json.Unmarshal(f.Data, &w)
		fmt.Printf("\n%s\n> ", w.Message)
	case "reply":
		var r struct {
			Text    string  `json:"text"`
			Summary summary `json:"summary"`
		}
		json.Unmarshal(f.Data, &r)
		fmt.Printf("\nassistant: %s\n", r.Text)
		fmt.Printf("[offer $%.2f (%s) | progress %s | %s]\n> ", r.Summary.CurrentOffer, r.Summary.DeltaText, r.Summary.ProgressText, r.Summary.Phase)
	case "error":
		fmt.Printf("\nerror: %s\n", f.Data)
	}
}
