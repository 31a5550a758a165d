package cli

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/coreflow/agentruntime/pkg/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAdapterReadsLinesAsInboundMessages(t *testing.T) {
	in := strings.NewReader("hello\nworld\n")
	out := &bytes.Buffer{}
	a := New(Config{In: in, Out: out}, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := a.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	var got []string
	for msg := range a.Messages() {
		got = append(got, msg.Content)
	}

	if len(got) != 2 || got[0] != "hello" || got[1] != "world" {
		t.Fatalf("unexpected messages: %v", got)
	}
}

func TestAdapterStopsOnQuitWord(t *testing.T) {
	in := strings.NewReader("first\nexit\nnever seen\n")
	out := &bytes.Buffer{}
	a := New(Config{In: in, Out: out}, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := a.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	var got []string
	for msg := range a.Messages() {
		got = append(got, msg.Content)
	}

	if len(got) != 1 || got[0] != "first" {
		t.Fatalf("expected only the pre-quit message, got: %v", got)
	}
}

func TestAdapterSendPrintsContentAndPrompt(t *testing.T) {
	out := &bytes.Buffer{}
	a := New(Config{In: strings.NewReader(""), Out: out, Prompt: "> "}, testLogger())

	if err := a.Send(context.Background(), &models.Message{Content: "hi there"}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	got := out.String()
	if !strings.Contains(got, "hi there") {
		t.Fatalf("expected output to contain message content, got %q", got)
	}
	if !strings.Contains(got, "> ") {
		t.Fatalf("expected output to contain prompt, got %q", got)
	}
}

func TestAdapterSendNilMessageIsNoop(t *testing.T) {
	out := &bytes.Buffer{}
	a := New(Config{In: strings.NewReader(""), Out: out}, testLogger())

	if err := a.Send(context.Background(), nil); err != nil {
		t.Fatalf("Send(nil) error = %v", err)
	}
	if out.Len() != 0 {
		t.Fatalf("expected no output for nil message, got %q", out.String())
	}
}

func TestAdapterTypeIsCLI(t *testing.T) {
	a := New(Config{In: strings.NewReader(""), Out: &bytes.Buffer{}}, testLogger())
	if a.Type() != models.ChannelCLI {
		t.Fatalf("Type() = %v, want %v", a.Type(), models.ChannelCLI)
	}
}

func TestAdapterStopIsIdempotentAfterExhaustedInput(t *testing.T) {
	out := &bytes.Buffer{}
	a := New(Config{In: strings.NewReader("only line\n"), Out: out}, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := a.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	for range a.Messages() {
	}

	if err := a.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
}
