// Package cli implements a channel adapter that reads prompts from stdin and
// writes responses to stdout, for local interactive use and scripting.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/coreflow/agentruntime/internal/channels"
	"github.com/coreflow/agentruntime/pkg/models"
	"github.com/google/uuid"
)

// quitWords stop the input loop without being sent to the agent.
var quitWords = map[string]bool{"exit": true, "quit": true, "/quit": true}

// Adapter is a blocking, line-oriented channel over stdin/stdout.
// One line of input becomes one inbound user message; replies are printed
// to stdout followed by a fresh prompt.
type Adapter struct {
	*channels.BaseHealthAdapter

	in      io.Reader
	out     io.Writer
	prompt  string
	userID  string
	running atomic.Bool

	messages chan *models.Message
	wg       sync.WaitGroup
}

// Config configures the CLI adapter.
type Config struct {
	In     io.Reader
	Out    io.Writer
	Prompt string
	UserID string
}

// New creates a CLI channel adapter. A nil In/Out defaults to os.Stdin/os.Stdout
// at Start time via the caller; tests can inject buffers directly.
func New(cfg Config, logger *slog.Logger) *Adapter {
	prompt := cfg.Prompt
	if prompt == "" {
		prompt = "agent> "
	}
	userID := cfg.UserID
	if userID == "" {
		userID = "local-user"
	}
	return &Adapter{
		BaseHealthAdapter: channels.NewBaseHealthAdapter(models.ChannelCLI, logger),
		in:                cfg.In,
		out:               cfg.Out,
		prompt:            prompt,
		userID:            userID,
		messages:          make(chan *models.Message, 32),
	}
}

// Type implements channels.Adapter.
func (a *Adapter) Type() models.ChannelType { return models.ChannelCLI }

// Messages implements channels.InboundAdapter.
func (a *Adapter) Messages() <-chan *models.Message { return a.messages }

// Start implements channels.LifecycleAdapter. It spawns a goroutine that
// reads lines from the configured input until the context is canceled, the
// input is exhausted, or a quit word is read.
func (a *Adapter) Start(ctx context.Context) error {
	a.running.Store(true)
	a.SetStatus(true, "")
	a.RecordConnectionOpened()

	a.wg.Add(1)
	go a.readLoop(ctx)
	return nil
}

func (a *Adapter) readLoop(ctx context.Context) {
	defer a.wg.Done()
	defer close(a.messages)

	a.printPrompt()
	scanner := bufio.NewScanner(a.in)
	for scanner.Scan() {
		if ctx.Err() != nil || !a.running.Load() {
			return
		}
		content := strings.TrimSpace(scanner.Text())
		if content == "" {
			a.printPrompt()
			continue
		}
		if quitWords[strings.ToLower(content)] {
			a.running.Store(false)
			return
		}

		msg := &models.Message{
			ID:        uuid.NewString(),
			Channel:   models.ChannelCLI,
			ChannelID: a.userID,
			Direction: models.DirectionInbound,
			Role:      models.RoleUser,
			Content:   content,
		}
		a.RecordMessageReceived()

		select {
		case a.messages <- msg:
		case <-ctx.Done():
			return
		}
	}
	if err := scanner.Err(); err != nil {
		a.Logger().Error("cli: read error", "error", err)
	}
}

// Send implements channels.OutboundAdapter by printing the message content
// followed by a fresh prompt.
func (a *Adapter) Send(ctx context.Context, msg *models.Message) error {
	if msg == nil {
		return nil
	}
	if _, err := fmt.Fprintf(a.out, "\n%s\n\n", msg.Content); err != nil {
		a.RecordMessageFailed()
		return err
	}
	a.RecordMessageSent()
	a.printPrompt()
	return nil
}

func (a *Adapter) printPrompt() {
	fmt.Fprint(a.out, a.prompt)
}

// Stop implements channels.LifecycleAdapter.
func (a *Adapter) Stop(ctx context.Context) error {
	a.running.Store(false)
	a.SetStatus(false, "")
	a.RecordConnectionClosed()
	a.wg.Wait()
	return nil
}
