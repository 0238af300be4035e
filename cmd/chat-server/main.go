package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"termchat"
)

func main() {
	defaultAddr := "127.0.0.1:8080"
	if env := os.Getenv("CHAT_BIND_ADDR"); env != "" {
		defaultAddr = env
	}

	addr := flag.String("addr", defaultAddr, "TCP address to listen on")
	noEcho := flag.Bool("no-echo", false, "do not echo chat lines back to their sender")
	flag.Parse()

	server, err := termchat.NewServer(
		termchat.WithAddr(*addr),
		termchat.WithChatEcho(!*noEcho),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "chat-server: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.StartWithContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "chat-server: %v\n", err)
		os.Exit(1)
	}
}
