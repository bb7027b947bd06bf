package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lhs544/University-administrative-AI-document-review-automation/internal/config"
	"github.com/lhs544/University-administrative-AI-document-review-automation/internal/conversation"
	"github.com/lhs544/University-administrative-AI-document-review-automation/internal/domain"
	"github.com/lhs544/University-administrative-AI-document-review-automation/internal/events"
	"github.com/lhs544/University-administrative-AI-document-review-automation/internal/observability"
	"github.com/lhs544/University-administrative-AI-document-review-automation/internal/service"
)

func replCmd() *cobra.Command {
	var memberID, password string
	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Chat with the document server from the terminal",
		Long: `Logs in to the document server and runs one conversation in this process.

Type an option number to pick it, free text to answer, "/upload <path>" to
submit a file and "/quit" to leave.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			return repl(cmd.Context(), cfg, memberID, password, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&memberID, "member", "", "member id (prompted when empty)")
	cmd.Flags().StringVar(&password, "password", "", "password (prompted when empty)")
	return cmd
}

func repl(ctx context.Context, cfg *config.Config, memberID, password string, in io.Reader, out io.Writer) error {
	logger, err := observability.NewConsoleLogger(cfg.Logger)
	if err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := bufio.NewScanner(in)
	if memberID == "" {
		memberID = prompt(lines, out, "member id: ")
	}
	if password == "" {
		password = prompt(lines, out, "password: ")
	}

	docs := newDocServerClient(cfg, logger)
	member, session, err := docs.Login(ctx, memberID, password)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	if session == "" {
		return errors.New("login succeeded but the document server returned no session")
	}
	fmt.Fprintf(out, "logged in as %s\n\n", member.Name)

	catalog, err := loadCatalog(ctx, cfg.Chat, logger)
	if err != nil {
		return err
	}
	chat := service.NewChatService(service.ChatDependencies{
		DocServers:      func(s string) conversation.DocServer { return docs.WithSession(s) },
		Catalog:         catalog,
		Dispatcher:      events.NewInMemoryDispatcher(logger),
		Metrics:         observability.NewMetrics(),
		Logger:          logger,
		Poll:            pollOptions(cfg.Chat, logger),
		Location:        cfg.Chat.Location(),
		StatusListLimit: cfg.Chat.StatusListLimit,
	})
	defer func() {
		shutdownCtx, c := context.WithTimeout(context.Background(), 5*time.Second)
		defer c()
		_ = chat.Shutdown(shutdownCtx)
	}()

	conv, err := chat.Create(ctx, service.ChatOwner{SubjectID: member.MemberID, Upstream: session})
	if err != nil {
		return err
	}

	p := newTranscriptPrinter(out, logger)
	history := func() []domain.Message { return conv.History(p.nextSeq()) }
	p.flush(history())
	go func() {
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.flush(history())
			}
		}
	}()

	subject, id := member.MemberID, conv.ID()
	for lines.Scan() {
		line := strings.TrimSpace(lines.Text())
		if line == "" {
			continue
		}

		var actErr error
		switch {
		case line == "/quit":
			return chat.Close(ctx, subject, id)
		case strings.HasPrefix(line, "/upload "):
			var file domain.Upload
			file, actErr = readUpload(strings.TrimSpace(strings.TrimPrefix(line, "/upload ")))
			if actErr == nil {
				_, actErr = chat.Upload(ctx, subject, id, file)
			}
		default:
			if n, err := strconv.Atoi(line); err == nil {
				opt, ok := p.option(n)
				if !ok {
					fmt.Fprintf(out, "no option %d\n", n)
					continue
				}
				_, actErr = chat.Command(ctx, subject, id, opt.Command)
			} else {
				_, actErr = chat.Input(ctx, subject, id, line)
			}
		}
		p.flush(history())
		if actErr != nil {
			fmt.Fprintf(out, "! %v\n", actErr)
		}
		if conv.State() == conversation.StateEnded {
			return chat.Close(ctx, subject, id)
		}
	}
	return lines.Err()
}

func prompt(lines *bufio.Scanner, out io.Writer, label string) string {
	fmt.Fprint(out, label)
	if !lines.Scan() {
		return ""
	}
	return strings.TrimSpace(lines.Text())
}

func readUpload(path string) (domain.Upload, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return domain.Upload{}, err
	}
	return domain.Upload{
		FileName:    filepath.Base(path),
		ContentType: mime.TypeByExtension(filepath.Ext(path)),
		Content:     content,
	}, nil
}

// transcriptPrinter writes new transcript entries and remembers the options
// of the latest bot message so they can be picked by number.
type transcriptPrinter struct {
	mu      sync.Mutex
	out     io.Writer
	conv    *md.Converter
	logger  *zap.Logger
	next    int
	options []domain.Option
}

func newTranscriptPrinter(out io.Writer, logger *zap.Logger) *transcriptPrinter {
	return &transcriptPrinter{out: out, conv: md.NewConverter("", true, nil), logger: logger}
}

func (p *transcriptPrinter) nextSeq() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.next
}

func (p *transcriptPrinter) option(n int) (domain.Option, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n < 1 || n > len(p.options) {
		return domain.Option{}, false
	}
	return p.options[n-1], true
}

func (p *transcriptPrinter) flush(msgs []domain.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, msg := range msgs {
		if msg.Seq < p.next {
			continue
		}
		p.next = msg.Seq + 1
		fmt.Fprintln(p.out, p.render(msg))
		if msg.Origin == domain.OriginBot && len(msg.Options) > 0 {
			p.options = msg.Options
			for i, opt := range msg.Options {
				fmt.Fprintf(p.out, "  %d) %s\n", i+1, opt.Label)
			}
		}
		if msg.UploadEnabled {
			fmt.Fprintf(p.out, "  (upload with /upload <path>; accepted: %s)\n", strings.Join(msg.Accept, ", "))
		}
	}
}

func (p *transcriptPrinter) render(msg domain.Message) string {
	text := msg.Text
	if msg.IsHTML {
		converted, err := p.conv.ConvertString(text)
		if err != nil {
			p.logger.Debug("html conversion failed", zap.Error(err))
		} else {
			text = converted
		}
	}
	prefix := "bot"
	if msg.Origin == domain.OriginUser {
		prefix = "you"
	}
	return prefix + "> " + text
}
