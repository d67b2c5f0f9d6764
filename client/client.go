package main

import (
	"bufio"
	"chat-relay/domain/event"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

// Config defines the client-side environment variables.
type Config struct {
	ServerURL string `env:"CHAT_SERVER_URL,default=ws://localhost:8080/api/chat/socket"`
	UserID    string `env:"CHAT_USER_ID,required=true"`
	PeerID    string `env:"CHAT_PEER_ID,required=true"`
	LogLevel  string `env:"LOG_LEVEL,default=INFO"`
}

// frame is an outbound event as read back by the client.
type frame struct {
	Event event.Name      `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
	}
	os.Exit(code)
}

// run connects as CHAT_USER_ID, prints the conversation with CHAT_PEER_ID,
// then sends every stdin line as a message to the peer.
func run() (int, error) {
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	target, err := socketURL(config.ServerURL, config.UserID)
	if err != nil {
		return exitConfig, err
	}
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, target, nil)
	if err != nil {
		return exitRuntime, fmt.Errorf("could not connect to server at %s: %w", config.ServerURL, err)
	}
	defer func() {
		log.Info("Closing connection...")
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		_ = ws.Close()
	}()

	fmt.Println(color.FgGray.Render(fmt.Sprintf(">>> Connected to %s as %s, talking to %s (Ctrl+C to quit)",
		config.ServerURL, config.UserID, config.PeerID)))

	if err := send(ws, event.FetchMessages, event.FetchMessagesPayload{
		SenderID: config.UserID, ReceiverID: config.PeerID,
	}); err != nil {
		return exitRuntime, err
	}

	// Only this goroutine writes to ws after the initial fetch.
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			if err := send(ws, event.ChatMessage, event.ChatMessagePayload{
				Message: line, SenderID: config.UserID, ReceiverID: config.PeerID,
			}); err != nil {
				log.Error("Failed to send message", "error", err)
				stop()
				return
			}
		}
	}()

	frames := make(chan frame)
	readErr := make(chan error, 1)
	go func() {
		for {
			var f frame
			if err := ws.ReadJSON(&f); err != nil {
				readErr <- err
				return
			}
			frames <- f
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return exitOK, nil
		case err := <-readErr:
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return exitOK, nil
			}
			return exitRuntime, fmt.Errorf("connection error: %w", err)
		case f := <-frames:
			for _, line := range render(f, config.UserID, config.PeerID) {
				fmt.Println(line)
			}
		}
	}
}

func socketURL(server, userID string) (string, error) {
	u, err := url.Parse(server)
	if err != nil {
		return "", fmt.Errorf("invalid CHAT_SERVER_URL %q: %w", server, err)
	}
	query := u.Query()
	query.Set("userId", userID)
	u.RawQuery = query.Encode()
	return u.String(), nil
}

func send(ws *websocket.Conn, name event.Name, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return ws.WriteJSON(event.Inbound{Event: name, Data: data})
}

// render turns one frame into printable lines. Messages outside the self/peer
// conversation are ignored, which matters when the relay broadcasts to everyone.
func render(f frame, self, peer string) []string {
	switch f.Event {
	case event.ChatMessage:
		var record event.MessageRecord
		if err := json.Unmarshal(f.Data, &record); err != nil || !between(record, self, peer) {
			return nil
		}
		return []string{line(record, self)}
	case event.ChatHistory:
		var records []event.MessageRecord
		if err := json.Unmarshal(f.Data, &records); err != nil {
			return nil
		}
		lines := []string{color.FgGray.Render(fmt.Sprintf("--- %d message(s) in history ---", len(records)))}
		for _, record := range records {
			lines = append(lines, line(record, self))
		}
		return lines
	case event.Error:
		var payload event.ErrorPayload
		_ = json.Unmarshal(f.Data, &payload)
		return []string{color.FgRed.Render("! " + payload.Message)}
	default:
		return nil
	}
}

func between(record event.MessageRecord, self, peer string) bool {
	return (record.SenderID == self && record.ReceiverID == peer) ||
		(record.SenderID == peer && record.ReceiverID == self)
}

func line(record event.MessageRecord, self string) string {
	author := color.FgCyan.Render(record.SenderID)
	if record.SenderID == self {
		author = color.FgGreen.Render(record.SenderID)
	}
	return fmt.Sprintf("[%s] %s: %s", record.CreatedAt.Local().Format(time.TimeOnly), author, record.Message)
}
