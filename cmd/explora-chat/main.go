package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/joho/godotenv"

	"github.com/helenaexplora/explora-platform/internal/chatclient"
	"github.com/helenaexplora/explora-platform/internal/i18n"
	"github.com/helenaexplora/explora-platform/pkg/logging"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	baseURL := flag.String("url", envOr("PUBLIC_BASE_URL", "http://localhost:8080"), "relay base URL")
	anonKey := flag.String("key", os.Getenv("RELAY_ANON_KEY"), "relay anon key")
	lang := flag.String("lang", envOr("DEFAULT_LOCALE", "pt-BR"), "conversation language")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	loc := i18n.NewLocalizer(*lang)
	client := chatclient.NewClient(*baseURL, *anonKey,
		chatclient.WithLocale(loc, loc.Match(*lang)),
		chatclient.WithLogger(logging.NewWithWriter("error", os.Stderr)),
	)
	if err := run(ctx, client.NewConversation(), os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run reads one message per line and prints the reply as it streams in.
func run(ctx context.Context, cv *chatclient.Conversation, in io.Reader, out io.Writer) error {
	printed := ""
	cv.OnChange(func(msgs []chatclient.Message) {
		last := msgs[len(msgs)-1]
		if last.Role != chatclient.RoleAssistant {
			return
		}
		if !strings.HasPrefix(last.Content, printed) {
			// the reply was replaced by the apology
			fmt.Fprint(out, "\n")
			printed = ""
		}
		fmt.Fprint(out, last.Content[len(printed):])
		printed = last.Content
	})

	fmt.Fprintf(out, "%s\n\n> ", cv.Messages()[0].Content)
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			fmt.Fprint(out, "> ")
			continue
		}
		printed = ""
		if err := cv.Send(ctx, text); err != nil && ctx.Err() != nil {
			return ctx.Err()
		}
		fmt.Fprint(out, "\n\n> ")
	}
	return scanner.Err()
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
