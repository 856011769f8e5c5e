package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"
)

// Sends one message to a room over the HTTP API and polls until it comes
// back, exercising the full send/poll round trip against a running server.

func main() {
	if err := run(); err != nil {
		log.Printf("poll_smoke: %v", err)
		os.Exit(1)
	}
}

func run() error {
	base := flag.String("addr", "http://localhost:8080", "server base URL")
	room := flag.String("room", "SMOKE1", "room code")
	nick := flag.String("nick", "tester", "nickname")
	text := flag.String("text", "hello from smoke test", "message text to send")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	client := &http.Client{}

	if err := postJSON(ctx, client, *base+"/api/rooms/ensure", map[string]string{
		"roomCode": *room,
	}, nil); err != nil {
		return fmt.Errorf("ensure room: %w", err)
	}

	var sent struct {
		Message struct {
			ID        string `json:"id"`
			CreatedAt int64  `json:"createdAt"`
		} `json:"message"`
	}
	if err := postJSON(ctx, client, *base+"/api/messages/send", map[string]string{
		"roomCode": *room,
		"nickname": *nick,
		"text":     *text,
	}, &sent); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	fmt.Printf("sent message id=%s createdAt=%d\n", sent.Message.ID, sent.Message.CreatedAt)

	after := sent.Message.CreatedAt - 1
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("poll: %w", ctx.Err())
		default:
		}

		var list struct {
			Messages []struct {
				ID       string `json:"id"`
				Nickname string `json:"nickname"`
				Text     string `json:"text"`
			} `json:"messages"`
		}
		url := fmt.Sprintf("%s/api/messages/list?roomCode=%s&after=%d", *base, *room, after)
		if err := getJSON(ctx, client, url, &list); err != nil {
			return fmt.Errorf("poll: %w", err)
		}

		for _, msg := range list.Messages {
			fmt.Printf("received id=%s nickname=%s text=%q\n", msg.ID, msg.Nickname, msg.Text)
			if msg.ID == sent.Message.ID {
				fmt.Println("round trip ok")
				return nil
			}
		}

		time.Sleep(200 * time.Millisecond)
	}
}

func postJSON(ctx context.Context, client *http.Client, url string, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return do(client, req, out)
}

func getJSON(ctx context.Context, client *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	return do(client, req, out)
}

func do(client *http.Client, req *http.Request, out any) error {
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
