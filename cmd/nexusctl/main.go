// Command nexusctl is a terminal chat client for development and
// debugging. It registers or logs in over the HTTPS API, opens a framed
// session, prints every inbound frame, and sends each stdin line as a
// text message to the chosen peer.
package main

import (
	"bufio"
	"bytes"
	"crypto/tls"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/nexuschat/nexusd/internal/httpapi"
	"github.com/nexuschat/nexusd/internal/protocol"
)

type options struct {
	api      string
	addr     string
	username string
	password string
	to       string
	register bool
	insecure bool
}

func main() {
	var opts options
	flag.StringVar(&opts.api, "api", "https://127.0.0.1:8082", "Base URL of the HTTPS API")
	flag.StringVar(&opts.addr, "addr", "127.0.0.1:8081", "TCP session address")
	flag.StringVar(&opts.username, "username", "", "Account username")
	flag.StringVar(&opts.password, "password", "", "Account password")
	flag.StringVar(&opts.to, "to", "", "Peer user UUID to message")
	flag.BoolVar(&opts.register, "register", false, "Create the account before logging in")
	flag.BoolVar(&opts.insecure, "insecure", false, "Skip TLS certificate verification")
	flag.Parse()

	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "nexusctl: %v\n", err)
		os.Exit(1)
	}
}

func run(opts options) error {
	if opts.username == "" || opts.password == "" {
		return fmt.Errorf("username and password are required")
	}

	client := &http.Client{Timeout: 10 * time.Second}
	if opts.insecure {
		client.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	creds, err := authenticate(client, opts)
	if err != nil {
		return err
	}
	fmt.Printf("logged in as %s (%s)\n", opts.username, creds.UUID)

	if opts.to == "" {
		return nil
	}
	peer, err := uuid.Parse(opts.to)
	if err != nil {
		return fmt.Errorf("parse peer uuid: %w", err)
	}

	return chat(opts.addr, creds, peer)
}

// authenticate registers the account when asked, then logs in.
func authenticate(client *http.Client, opts options) (httpapi.AuthResponse, error) {
	var creds httpapi.AuthResponse

	host, _ := os.Hostname()
	req := httpapi.AuthRequest{
		Username: opts.username,
		Password: opts.password,
		Meta: httpapi.DeviceMeta{
			DeviceName: host,
			DeviceType: "terminal",
			DeviceOS:   "linux",
		},
	}

	if opts.register {
		if err := postJSON(client, opts.api+"/api/auth/register", req, &creds); err != nil {
			return creds, fmt.Errorf("register: %w", err)
		}
		return creds, nil
	}

	if err := postJSON(client, opts.api+"/api/auth/login", req, &creds); err != nil {
		return creds, fmt.Errorf("login: %w", err)
	}
	return creds, nil
}

func postJSON(client *http.Client, url string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	resp, err := client.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s: %s", resp.Status, bytes.TrimSpace(data))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// chat opens the framed session and pumps stdin lines out as messages
// while printing every inbound frame.
func chat(addr string, creds httpapi.AuthResponse, peer uuid.UUID) error {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("dial session: %w", err)
	}
	defer conn.Close()

	enc := json.NewEncoder(conn)

	// The first frame only authenticates; the server answers Ok/202 or
	// the line "Invalid JWT".
	hello := protocol.Envelope{Command: protocol.CommandMessage, Body: json.RawMessage("{}"), Token: creds.Token}
	if err := enc.Encode(&hello); err != nil {
		return fmt.Errorf("handshake: %w", err)
	}

	sessionReader := bufio.NewScanner(conn)
	sessionReader.Buffer(make([]byte, 64*1024), 64*1024)
	if !sessionReader.Scan() {
		return fmt.Errorf("handshake: connection closed")
	}
	ack := sessionReader.Text()
	fmt.Println(ack)
	if ack == "Invalid JWT" {
		return fmt.Errorf("session rejected")
	}

	go func() {
		for sessionReader.Scan() {
			fmt.Println(sessionReader.Text())
		}
		fmt.Fprintln(os.Stderr, "session closed by server")
		os.Exit(0)
	}()

	stdin := bufio.NewScanner(os.Stdin)
	for stdin.Scan() {
		text := stdin.Text()
		if text == "" {
			continue
		}
		if err := sendText(enc, creds, peer, text); err != nil {
			return fmt.Errorf("send: %w", err)
		}
	}
	return stdin.Err()
}

func sendText(enc *json.Encoder, creds httpapi.AuthResponse, peer uuid.UUID, text string) error {
	msg := protocol.Message{
		UUID:        uuid.New(),
		Content:     protocol.TextContent{Text: text},
		Sides:       protocol.Sides{Sender: creds.UUID, Receiver: peer},
		MessageType: protocol.MessageText,
		CreatedAt:   time.Now().Unix(),
	}

	body, err := json.Marshal(protocol.MessageRequest{Message: msg})
	if err != nil {
		return err
	}
	env := protocol.Envelope{
		Command: protocol.CommandMessage,
		Body:    body,
		Token:   creds.Token,
	}
	return enc.Encode(&env)
}
