package correct

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type fakeCompleter struct {
	CompleteFn func(ctx context.Context, system, user string) (string, error)
	calls      int
}

func (f *fakeCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	f.calls++
	return f.CompleteFn(ctx, system, user)
}

func TestCorrectChunkSuccess(t *testing.T) {
	completer := &fakeCompleter{
		CompleteFn: func(ctx context.Context, system, user string) (string, error) {
			if system == "" {
				t.Fatal("system instruction not passed")
			}
			return "corrected: " + user, nil
		},
	}
	client := NewClient(completer)

	got, err := client.CorrectChunk(context.Background(), "teh text")
	if err != nil {
		t.Fatalf("CorrectChunk: %v", err)
	}
	if got != "corrected: teh text" {
		t.Fatalf("got %q", got)
	}
	if completer.calls != 1 {
		t.Fatalf("expected 1 call, got %d", completer.calls)
	}
}

func TestCorrectChunkRetriesThenSucceeds(t *testing.T) {
	completer := &fakeCompleter{}
	completer.CompleteFn = func(ctx context.Context, system, user string) (string, error) {
		if completer.calls < 3 {
			return "", errors.New("upstream timeout")
		}
		return "fixed", nil
	}
	client := NewClient(completer)
	client.retryDelay = 0

	got, err := client.CorrectChunk(context.Background(), "text")
	if err != nil {
		t.Fatalf("CorrectChunk: %v", err)
	}
	if got != "fixed" {
		t.Fatalf("got %q", got)
	}
	if completer.calls != 3 {
		t.Fatalf("expected 3 calls, got %d", completer.calls)
	}
}

func TestCorrectChunkExhaustsAttempts(t *testing.T) {
	upstream := errors.New("rate limited")
	completer := &fakeCompleter{
		CompleteFn: func(ctx context.Context, system, user string) (string, error) {
			return "", upstream
		},
	}
	client := NewClient(completer)
	client.retryDelay = 0

	_, err := client.CorrectChunk(context.Background(), "text")
	var svcErr *ServiceError
	if !errors.As(err, &svcErr) {
		t.Fatalf("expected ServiceError, got %v", err)
	}
	if svcErr.Attempts != 3 {
		t.Fatalf("got %d attempts", svcErr.Attempts)
	}
	if !errors.Is(err, upstream) {
		t.Fatal("ServiceError should wrap the last failure")
	}
	if completer.calls != 3 {
		t.Fatalf("expected 3 calls, got %d", completer.calls)
	}
}

func TestCorrectChunkBlankResponseIsFailure(t *testing.T) {
	completer := &fakeCompleter{
		CompleteFn: func(ctx context.Context, system, user string) (string, error) {
			return "   \n\t ", nil
		},
	}
	client := NewClient(completer)
	client.retryDelay = 0

	_, err := client.CorrectChunk(context.Background(), "text")
	var svcErr *ServiceError
	if !errors.As(err, &svcErr) {
		t.Fatalf("expected ServiceError, got %v", err)
	}
	if !strings.Contains(err.Error(), "empty response") {
		t.Fatalf("got %v", err)
	}
}

func TestCorrectChunkCanceledContext(t *testing.T) {
	completer := &fakeCompleter{
		CompleteFn: func(ctx context.Context, system, user string) (string, error) {
			return "", errors.New("should retry")
		},
	}
	client := NewClient(completer)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.CorrectChunk(ctx, "text")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if completer.calls != 0 {
		t.Fatalf("expected no calls after cancellation, got %d", completer.calls)
	}
}
