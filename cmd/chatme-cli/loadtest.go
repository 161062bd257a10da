package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

type loadTestOptions struct {
	baseURL  string
	pairs    int
	messages int
}

func newLoadTestCmd() *cobra.Command {
	opts := &loadTestOptions{}

	cmd := &cobra.Command{
		Use:   "loadtest",
		Short: "Drive message traffic through a running server",
		Long: `loadtest signs up pairs of throwaway accounts, opens a chat inside
each pair and has both sides exchange messages over WebSocket. Point it at a
disposable environment; it writes real data.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoadTest(opts)
		},
	}

	cmd.Flags().StringVar(&opts.baseURL, "base-url", "http://localhost:8080", "server base URL")
	cmd.Flags().IntVar(&opts.pairs, "pairs", 50, "number of user pairs")
	cmd.Flags().IntVar(&opts.messages, "messages", 20, "messages each side sends")
	return cmd
}

type authResponse struct {
	User struct {
		ID string `json:"id"`
	} `json:"user"`
	Token string `json:"token"`
}

type chatResponse struct {
	ID string `json:"id"`
}

func runLoadTest(opts *loadTestOptions) error {
	log.Printf("starting load test: %d pairs, %d messages each side", opts.pairs, opts.messages)
	start := time.Now()

	var wg sync.WaitGroup
	for i := 0; i < opts.pairs; i++ {
		wg.Add(1)
		go func(pairID int) {
			defer wg.Done()
			runPair(opts, pairID)
		}(i)
	}
	wg.Wait()

	log.Printf("load test complete in %s", time.Since(start))
	return nil
}

func runPair(opts *loadTestOptions, pairID int) {
	suffix := fmt.Sprintf("%d-%d", time.Now().UnixNano(), pairID)
	a, err := signUp(opts.baseURL, "Load A "+suffix, fmt.Sprintf("load-a-%s@example.com", suffix))
	if err != nil {
		log.Printf("pair %d: signup a: %v", pairID, err)
		return
	}
	b, err := signUp(opts.baseURL, "Load B "+suffix, fmt.Sprintf("load-b-%s@example.com", suffix))
	if err != nil {
		log.Printf("pair %d: signup b: %v", pairID, err)
		return
	}

	chatID, err := startChat(opts.baseURL, a.Token, b.User.ID)
	if err != nil {
		log.Printf("pair %d: start chat: %v", pairID, err)
		return
	}

	var wsWg sync.WaitGroup
	wsWg.Add(2)
	go pump(&wsWg, opts, pairID, a.Token, chatID, b.User.ID)
	go pump(&wsWg, opts, pairID, b.Token, chatID, a.User.ID)
	wsWg.Wait()
}

func signUp(baseURL, name, email string) (*authResponse, error) {
	body, _ := json.Marshal(map[string]string{
		"name":     name,
		"email":    email,
		"password": "password123",
	})
	resp, err := http.Post(baseURL+"/auth/signup", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("signup returned %d", resp.StatusCode)
	}

	var auth authResponse
	if err := json.NewDecoder(resp.Body).Decode(&auth); err != nil {
		return nil, err
	}
	return &auth, nil
}

func startChat(baseURL, token, contactID string) (string, error) {
	body, _ := json.Marshal(map[string]string{"contactId": contactID})
	req, err := http.NewRequest(http.MethodPost, baseURL+"/chats", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("start chat returned %d", resp.StatusCode)
	}

	var chat chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
		return "", err
	}
	return chat.ID, nil
}

// pump connects one side's socket, drains inbound events and sends its
// share of messages.
func pump(wg *sync.WaitGroup, opts *loadTestOptions, pairID int, token, chatID, contactID string) {
	defer wg.Done()

	wsURL := strings.Replace(opts.baseURL, "http", "ws", 1) + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		log.Printf("pair %d: ws connect: %v", pairID, err)
		return
	}
	defer conn.Close()

	// Inbound events (presence broadcasts, received messages) have to be
	// read or the server's send buffers back up.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for i := 0; i < opts.messages; i++ {
		frame := map[string]any{
			"action": "send_message",
			"data": map[string]any{
				"message":   fmt.Sprintf("load test message %d", i),
				"chatId":    chatID,
				"contactId": contactID,
			},
		}
		if err := conn.WriteJSON(frame); err != nil {
			log.Printf("pair %d: send: %v", pairID, err)
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
}
