// Command chat-cli talks to the concierge in-process from a terminal. It
// uses in-memory sessions and the configured language model, so a local
// .env is enough to try a conversation end to end.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/wolfman30/bl-concierge/cmd/mainconfig"
	"github.com/wolfman30/bl-concierge/internal/app/bootstrap"
	appconfig "github.com/wolfman30/bl-concierge/internal/config"
	"github.com/wolfman30/bl-concierge/internal/engine"
	"github.com/wolfman30/bl-concierge/internal/llm"
	"github.com/wolfman30/bl-concierge/pkg/logging"
)

func main() {
	sender := flag.String("sender", "cli-user", "sender id for the conversation")
	probe := flag.Bool("probe", false, "send one prompt to the language model and exit")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "No .env file found, using environment variables")
	}
	cfg := appconfig.Load()
	cfg.SessionBackend = "memory"
	logger := logging.New(cfg.LogLevel)

	ctx := context.Background()
	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}
	client, err := bootstrap.BuildLLMClient(ctx, cfg, awsCfg, logger)
	if err != nil {
		logger.Error("failed to configure language model", "error", err)
		os.Exit(1)
	}
	if closer, ok := client.(io.Closer); ok {
		defer closer.Close()
	}

	if *probe {
		if err := probeModel(ctx, client, os.Stdout); err != nil {
			logger.Error("model probe failed", "provider", cfg.LLMProvider, "error", err)
			os.Exit(1)
		}
		return
	}

	concierge := bootstrap.BuildConcierge(bootstrap.Dependencies{
		Config: cfg,
		AWS:    awsCfg,
		LLM:    client,
		Logger: logger,
	})
	if err := repl(ctx, os.Stdin, os.Stdout, concierge.Engine, *sender); err != nil {
		logger.Error("chat session ended with error", "error", err)
		os.Exit(1)
	}
}

type conversation interface {
	ProcessTurn(ctx context.Context, senderID, message string, tc engine.TurnContext) string
	Reset(ctx context.Context, senderID string) error
}

// repl reads one message per line. "/reset" clears the session and "/quit"
// exits.
func repl(ctx context.Context, in io.Reader, out io.Writer, c conversation, sender string) error {
	scanner := bufio.NewScanner(in)
	fmt.Fprint(out, "> ")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
		case "/quit", "/exit":
			return nil
		case "/reset":
			if err := c.Reset(ctx, sender); err != nil {
				return fmt.Errorf("reset session: %w", err)
			}
			fmt.Fprintln(out, "(session cleared)")
		default:
			fmt.Fprintln(out, c.ProcessTurn(ctx, sender, line, engine.TurnContext{}))
		}
		fmt.Fprint(out, "> ")
	}
	return scanner.Err()
}

func probeModel(ctx context.Context, client llm.Client, out io.Writer) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	start := time.Now()
	resp, err := client.Complete(ctx, llm.Request{
		System:      []string{"You are a shipping line customer service assistant. Answer in one sentence."},
		Messages:    []llm.ChatMessage{{Role: llm.ChatRoleUser, Content: "What is a bill of lading?"}},
		MaxTokens:   100,
		Temperature: 0.2,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s\n(%v, tokens in=%d out=%d)\n", resp.Text, time.Since(start).Round(time.Millisecond), resp.Usage.InputTokens, resp.Usage.OutputTokens)
	return nil
}
