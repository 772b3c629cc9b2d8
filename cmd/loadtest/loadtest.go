// Command loadtest drives a running server with a pair of chatting
// users: sign up, log in, connect over websocket, and exchange
// messages while counting the events pushed back.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

var (
	addr     = flag.String("addr", "http://localhost:8080", "server base URL")
	messages = flag.Int("messages", 50, "messages to send per user")
)

type account struct {
	UserID uuid.UUID `json:"userId"`
	client *http.Client
}

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	run := time.Now().Unix()
	alice := mustSignIn(fmt.Sprintf("alice-%d", run))
	bob := mustSignIn(fmt.Sprintf("bob-%d", run))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	aliceConn := mustDial(ctx, alice)
	defer aliceConn.CloseNow()
	bobConn := mustDial(ctx, bob)
	defer bobConn.CloseNow()

	done := make(chan int, 2)
	go drain(ctx, aliceConn, done)
	go drain(ctx, bobConn, done)

	for i := 0; i < *messages; i++ {
		send(ctx, aliceConn, bob.UserID, fmt.Sprintf("ping %d", i))
		send(ctx, bobConn, alice.UserID, fmt.Sprintf("pong %d", i))
	}

	time.Sleep(2 * time.Second)
	cancel()
	log.Printf("events received: %d + %d", <-done, <-done)
}

func mustSignIn(name string) account {
	email := name + "@loadtest.local"
	body, _ := json.Marshal(map[string]string{
		"username": name,
		"email":    email,
		"password": "loadtest-password",
	})
	res, err := http.Post(*addr+"/api/auth/signup", "application/json", bytes.NewReader(body))
	if err != nil {
		log.Fatalf("signup failed for %s: %v", name, err)
	}
	res.Body.Close()

	jar, _ := cookiejar.New(nil)
	acct := account{client: &http.Client{Jar: jar}}

	body, _ = json.Marshal(map[string]string{
		"email":    email,
		"password": "loadtest-password",
	})
	res, err = acct.client.Post(*addr+"/api/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		log.Fatalf("login failed for %s: %v", name, err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		log.Fatalf("login for %s returned %d", name, res.StatusCode)
	}
	if err := json.NewDecoder(res.Body).Decode(&acct); err != nil {
		log.Fatalf("failed to decode login response: %v", err)
	}
	return acct
}

func mustDial(ctx context.Context, acct account) *websocket.Conn {
	conn, _, err := websocket.Dial(ctx, *addr+"/ws", &websocket.DialOptions{
		HTTPClient: acct.client,
	})
	if err != nil {
		log.Fatalf("websocket dial failed: %v", err)
	}
	return conn
}

func send(ctx context.Context, conn *websocket.Conn, recipient uuid.UUID, content string) {
	payload, _ := json.Marshal(map[string]any{
		"recipient": recipient,
		"content":   content,
	})
	if err := conn.Write(ctx, websocket.MessageText, payload); err != nil {
		log.Printf("write failed: %v", err)
	}
}

func drain(ctx context.Context, conn *websocket.Conn, done chan<- int) {
	count := 0
	for {
		_, _, err := conn.Read(ctx)
		if err != nil {
			done <- count
			return
		}
		count++
	}
}
