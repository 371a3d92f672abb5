package tui

import (
	"context"
	"testing"
	"time"

	"github.com/naveenspark/beacon/pkg/domain"
)

func TestPrompterRoundTrip(t *testing.T) {
	p := NewPrompter()
	done := make(chan domain.PermissionState, 1)
	go func() {
		st, err := p.PromptPermission(context.Background(), "http://localhost:5173")
		if err != nil {
			t.Errorf("PromptPermission: %v", err)
		}
		done <- st
	}()

	msg, ok := waitForPrompt(p)().(promptMsg)
	if !ok {
		t.Fatal("expected promptMsg")
	}
	if msg.req.origin != "http://localhost:5173" {
		t.Errorf("origin = %q", msg.req.origin)
	}
	msg.req.answer <- domain.PermissionDenied

	select {
	case st := <-done:
		if st != domain.PermissionDenied {
			t.Errorf("answer = %q, want denied", st)
		}
	case <-time.After(time.Second):
		t.Fatal("prompt did not return")
	}
}

func TestPrompterCancelled(t *testing.T) {
	p := NewPrompter()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	st, err := p.PromptPermission(ctx, "http://localhost:5173")
	if err == nil {
		t.Error("expected ctx error")
	}
	if st != domain.PermissionDefault {
		t.Errorf("answer = %q, want default", st)
	}
}

func TestPromptAnswer(t *testing.T) {
	tests := []struct {
		key  string
		want domain.PermissionState
		ok   bool
	}{
		{"y", domain.PermissionGranted, true},
		{"Y", domain.PermissionGranted, true},
		{"n", domain.PermissionDenied, true},
		{"esc", domain.PermissionDefault, true},
		{"q", "", false},
	}
	for _, tt := range tests {
		got, ok := promptAnswer(tt.key)
		if got != tt.want || ok != tt.ok {
			t.Errorf("promptAnswer(%q) = %q, %v; want %q, %v", tt.key, got, ok, tt.want, tt.ok)
		}
	}
}
