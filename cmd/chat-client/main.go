package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"termchat"
)

// ctrl carries the responses that drive the menu flow; room traffic
// (UserJoined, UserMessage, UserLeft, RoomInfo) is printed as it arrives.
type ui struct {
	client *termchat.Client
	stdin  *bufio.Scanner
	ctrl   chan termchat.Message
	closed chan struct{}
}

func main() {
	addr := serverAddr()

	client, err := termchat.Dial(addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "chat-client: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	u := &ui{
		client: client,
		stdin:  bufio.NewScanner(os.Stdin),
		ctrl:   make(chan termchat.Message, 8),
		closed: make(chan struct{}),
	}

	go u.pump()

	if _, ok := u.waitCtrl(); !ok {
		fmt.Fprintln(os.Stderr, "chat-client: connection closed")
		os.Exit(1)
	}
	fmt.Printf("Connected to %s\n", addr)

	u.menuLoop()
}

func serverAddr() string {
	if len(os.Args) > 1 {
		return os.Args[1]
	}
	if env := os.Getenv("CHAT_SERVER"); env != "" {
		return env
	}
	return "127.0.0.1:8080"
}

// pump prints room traffic and forwards flow-control responses to ctrl.
func (u *ui) pump() {
	defer close(u.closed)
	for m := range u.client.Incoming() {
		switch msg := m.(type) {
		case termchat.UserJoined:
			fmt.Printf("* %s joined the room\n", msg.Username)
		case termchat.UserMessage:
			fmt.Printf("[%s] %s\n", msg.Username, msg.Content)
		case termchat.UserLeft:
			fmt.Printf("* %s left the room\n", msg.Username)
		case termchat.RoomInfo:
			fmt.Printf("Room %q: %d/%d users: %s\n",
				msg.RoomName, msg.CurrentCount, msg.MaxUsers, strings.Join(msg.Users, ", "))
		default:
			u.ctrl <- m
		}
	}
}

func (u *ui) waitCtrl() (termchat.Message, bool) {
	select {
	case m := <-u.ctrl:
		return m, true
	case <-u.closed:
		return nil, false
	}
}

func (u *ui) readLine(prompt string) (string, bool) {
	fmt.Print(prompt)
	if !u.stdin.Scan() {
		return "", false
	}
	return strings.TrimSpace(u.stdin.Text()), true
}

func (u *ui) menuLoop() {
	for {
		fmt.Println()
		fmt.Println("1) Create a room")
		fmt.Println("2) Join a room")
		fmt.Println("3) Quit")

		choice, ok := u.readLine("> ")
		if !ok {
			return
		}

		switch choice {
		case "1":
			roomID, ok := u.createRoom()
			if !ok {
				continue
			}
			if u.joinWithUsername(roomID) {
				if !u.chatLoop() {
					return
				}
			}
		case "2":
			roomID, ok := u.readLine("Room ID: ")
			if !ok {
				return
			}
			if u.joinWithUsername(roomID) {
				if !u.chatLoop() {
					return
				}
			}
		case "3", "q", "quit":
			return
		default:
			fmt.Println("Please pick 1, 2 or 3.")
		}
	}
}

// createRoom prompts for parameters and returns the new room's id. A failed
// create returns to the menu.
func (u *ui) createRoom() (string, bool) {
	name, ok := u.readLine("Room name: ")
	if !ok {
		return "", false
	}
	rawMax, ok := u.readLine("Max users: ")
	if !ok {
		return "", false
	}
	maxUsers, err := strconv.Atoi(rawMax)
	if err != nil {
		fmt.Println("Max users must be a number.")
		return "", false
	}

	if err := u.client.CreateRoom(name, maxUsers); err != nil {
		fmt.Fprintf(os.Stderr, "send failed: %v\n", err)
		return "", false
	}

	// An out-of-range capacity produces a warning followed by RoomCreated
	// with the adjusted value, so keep waiting after invalid_capacity.
	for {
		m, alive := u.waitCtrl()
		if !alive {
			return "", false
		}
		switch msg := m.(type) {
		case termchat.RoomCreated:
			fmt.Printf("Room %q created with id %s (max %d users)\n", msg.RoomName, msg.RoomID, msg.MaxUsers)
			return msg.RoomID, true
		case termchat.ErrorMessage:
			fmt.Printf("Server: %s\n", msg.Message)
			if msg.ErrKind == "invalid_capacity" {
				continue
			}
			return "", false
		}
	}
}

// joinWithUsername prompts for a username until the server accepts it, or
// sends us back to the menu on a room-level error.
func (u *ui) joinWithUsername(roomID string) bool {
	for {
		username, ok := u.readLine("Username: ")
		if !ok {
			return false
		}

		if err := u.client.JoinRoom(roomID, username); err != nil {
			fmt.Fprintf(os.Stderr, "send failed: %v\n", err)
			return false
		}

		m, alive := u.waitCtrl()
		if !alive {
			return false
		}
		switch msg := m.(type) {
		case termchat.JoinedRoom:
			fmt.Printf("Joined %q. Type /help for commands.\n", msg.RoomName)
			return true
		case termchat.ErrorMessage:
			fmt.Printf("Server: %s\n", msg.Message)
			switch msg.ErrKind {
			case "username_empty", "username_taken":
				continue
			}
			return false
		}
	}
}

// chatLoop relays stdin lines into the room until the user leaves. Returns
// false when stdin is exhausted and the program should exit.
func (u *ui) chatLoop() bool {
	for {
		line, ok := u.readLine("")
		if !ok {
			return false
		}

		select {
		case <-u.closed:
			fmt.Fprintln(os.Stderr, "connection closed")
			return false
		default:
		}

		switch termchat.ClassifyInput(line) {
		case termchat.InputEmpty:
			continue
		case termchat.InputHelp:
			fmt.Println("/count  show who is in the room")
			fmt.Println("/leave  leave the room (or type quit)")
			fmt.Println("/help   this message")
		case termchat.InputCount:
			if err := u.client.RequestRoomInfo(); err != nil {
				fmt.Fprintf(os.Stderr, "send failed: %v\n", err)
				return false
			}
		case termchat.InputLeave:
			if err := u.client.Leave(); err != nil {
				fmt.Fprintf(os.Stderr, "send failed: %v\n", err)
				return false
			}
			fmt.Println("Left the room.")
			return true
		case termchat.InputChat:
			if err := u.client.Chat(line); err != nil {
				fmt.Fprintf(os.Stderr, "send failed: %v\n", err)
				return false
			}
		}
	}
}
