package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/tjfontaine/ragchat/internal/api/chatapi"
	"github.com/tjfontaine/ragchat/internal/chat"
	"github.com/tjfontaine/ragchat/internal/config"
	"github.com/tjfontaine/ragchat/internal/storage/sqlite"
	"github.com/tjfontaine/ragchat/internal/telemetry"
	"github.com/tjfontaine/ragchat/internal/transport"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	// Logs go to stderr so the conversation owns stdout.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	shutdown, err := telemetry.InitTracer("ragchat", logger)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	render := &renderer{out: os.Stdout}
	opts := []chat.Option{
		chat.WithLogger(logger),
		chat.WithOnUpdate(render.onUpdate),
	}
	if cfg.History.Enabled {
		store, err := sqlite.New(cfg.History.Path)
		if err != nil {
			log.Fatalf("Failed to open history store: %v", err)
		}
		defer store.Close()
		opts = append(opts, chat.WithArchiver(store))
	}

	session := chat.NewSession(
		transport.NewClient(transport.WithBaseURL(cfg.Backend.BaseURL)),
		sessionConfig(cfg),
		opts...,
	)
	render.session = session

	run(session, render, cfg)
}

func sessionConfig(cfg *config.Config) chat.Config {
	mode := chatapi.TypeChat
	if cfg.Chat.Mode == "ask" {
		mode = chatapi.TypeAsk
	}
	return chat.Config{
		Mode:    mode,
		ChatURL: cfg.Backend.ChatURL,
		AskURL:  cfg.Backend.AskURL,
		Stream:  cfg.Chat.Stream,
		Overrides: &chatapi.Overrides{
			RetrievalMode:    cfg.Chat.RetrievalMode,
			Top:              cfg.Chat.Top,
			Temperature:      cfg.Chat.Temperature,
			PromptTemplate:   cfg.Chat.PromptTemplate,
			ExcludeCategory:  cfg.Chat.ExcludeCategory,
			SemanticRanker:   cfg.Chat.SemanticRanker,
			SemanticCaptions: cfg.Chat.SemanticCaptions,
			SuggestFollowup:  cfg.Chat.SuggestFollowup,
		},
	}
}

func run(session *chat.Session, render *renderer, cfg *config.Config) {
	// Ctrl-C cancels the in-flight exchange instead of killing the process;
	// Ctrl-C while idle exits.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		for range sigChan {
			if session.IsProcessingResponse() {
				session.Cancel()
				continue
			}
			fmt.Println()
			os.Exit(0)
		}
	}()

	fmt.Printf("ragchat connected to %s (%s mode, /reset clears, /exit quits)\n",
		cfg.Backend.BaseURL, cfg.Chat.Mode)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			return
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/exit", "/quit":
			return
		case "/reset":
			session.Reset()
			render.printed = ""
			fmt.Println("thread cleared")
			continue
		case "/thoughts":
			if session.CanShowThoughtProcess() {
				fmt.Println(session.Thoughts())
			} else {
				fmt.Println("no thought process for the last exchange")
			}
			continue
		}

		render.printed = ""
		if err := session.Submit(context.Background(), line); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		render.finishExchange()
	}
}

// renderer prints the assistant's answer as it streams. Submit runs its
// progress callbacks synchronously on the submitting goroutine, so printing
// from onUpdate needs no locking.
type renderer struct {
	out     *os.File
	session *chat.Session
	printed string
}

// onUpdate prints the part of the answer that arrived since the last
// callback. The text is cumulative on every update; when the new text does
// not extend what was printed, the line is restarted.
func (r *renderer) onUpdate() {
	turn := r.session.Thread().Last()
	if turn == nil || turn.IsUser {
		return
	}
	text := turn.AnswerText()
	if strings.HasPrefix(text, r.printed) {
		fmt.Fprint(r.out, text[len(r.printed):])
	} else {
		fmt.Fprintf(r.out, "\n%s", text)
	}
	r.printed = text
}

// finishExchange prints what streaming could not: the cleaned final text when
// it differs from the raw stream, then citations, steps and follow-ups.
func (r *renderer) finishExchange() {
	turn := r.session.Thread().Last()
	if turn == nil {
		return
	}

	if turn.Error != nil {
		if r.printed != "" {
			fmt.Fprintln(r.out)
		}
		fmt.Fprintln(r.out, turn.Error.Message)
		r.printed = ""
		return
	}

	final := turn.AnswerText()
	if final != r.printed {
		if r.printed != "" {
			fmt.Fprintln(r.out)
		}
		fmt.Fprintln(r.out, final)
	} else {
		fmt.Fprintln(r.out)
	}
	r.printed = ""

	for _, seg := range turn.Text {
		for _, step := range seg.FollowingSteps {
			fmt.Fprintf(r.out, "  step: %s\n", step)
		}
	}
	for _, c := range turn.Citations {
		fmt.Fprintf(r.out, "  [%d] %s\n", c.Ref, c.Text)
	}
	for _, q := range turn.FollowupQuestions {
		fmt.Fprintf(r.out, "  follow-up: %s\n", q)
	}
	if r.session.CanShowThoughtProcess() {
		fmt.Fprintln(r.out, "  (/thoughts shows the retrieval reasoning)")
	}
}
