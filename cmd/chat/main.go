// Command chat is a terminal client for the backend: it keeps one
// conversation, sending each line typed and printing the model's reply.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"c5chat-backend/cmd"
	"c5chat-backend/internal/conversation"

	"github.com/caarlos0/env/v11"
)

type ChatConfig struct {
	ServerURL string `env:"C5CHAT_SERVER_URL" envDefault:"http://localhost:8001"`
}

func main() {
	cmd.LoadEnvFile()

	var cfg ChatConfig
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("error parsing config: %v", err)
	}

	gateway := conversation.NewRemoteGateway(cfg.ServerURL)
	conv := conversation.New(gateway, gateway)

	ctx := context.Background()
	if err := conv.Initialize(ctx); err != nil {
		log.Fatalf("could not start a chat session against %s: %v", cfg.ServerURL, err)
	}

	fmt.Printf("connected to %s (session %s), type a message and press enter\n", cfg.ServerURL, conv.SessionID())

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}

		reply, err := conv.Send(ctx, scanner.Text())
		if errors.Is(err, conversation.ErrBlankMessage) {
			continue
		}
		if err != nil {
			fmt.Printf("error: %s\n", conv.Err())
			continue
		}

		fmt.Println(reply)
	}

	if err := scanner.Err(); err != nil {
		log.Fatalf("error reading input: %v", err)
	}
}
