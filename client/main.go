package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// Message mirrors the server's JSON envelope.
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// send formats and sends a message to the WebSocket server.
func send(c *websocket.Conn, msgType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return c.WriteJSON(&Message{Type: msgType, Data: data})
}

func main() {
	host := flag.String("host", "localhost:8000", "server address")
	room := flag.String("room", "lobby", "room id")
	user := flag.String("user", "guest", "user name")
	flag.Parse()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	u := url.URL{Scheme: "ws", Host: *host, Path: fmt.Sprintf("/ws/%s/%s", *room, *user)}
	log.Printf("Connecting to %s", u.String())

	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("Dial failed: %v", err)
	}
	defer c.Close()

	done := make(chan struct{})

	// Read loop
	go func() {
		defer close(done)
		for {
			var msg Message
			if err := c.ReadJSON(&msg); err != nil {
				log.Println("Read error:", err)
				return
			}
			log.Printf("<- RECV (%s): %s", msg.Type, string(msg.Data))
		}
	}()

	log.Println("Client started. Type a chat message, '/answer <word>' to answer, '/state' to refresh.")

	// Write loop
	reader := bufio.NewReader(os.Stdin)
	for {
		select {
		case <-done:
			return
		case <-interrupt:
			log.Println("Interrupt received, closing connection.")
			err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			if err != nil {
				log.Println("Write close error:", err)
			}
			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return
		default:
			text, _ := reader.ReadString('\n')
			text = strings.TrimSpace(text)
			if text == "" {
				continue
			}

			var err error
			switch {
			case text == "/state":
				err = send(c, "get_state", struct{}{})
			case strings.HasPrefix(text, "/answer "):
				answer := strings.TrimSpace(strings.TrimPrefix(text, "/answer "))
				err = send(c, "submit_answer", map[string]string{"answer": answer})
			default:
				err = send(c, "chat", map[string]string{"message": text})
			}
			if err != nil {
				log.Println("Write error:", err)
				return
			}
		}
	}
}
