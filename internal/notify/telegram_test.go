package notify

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewWithoutTokenReturnsNop(t *testing.T) {
	n, err := New("", 0, zerolog.Nop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, ok := n.(Nop); !ok {
		t.Fatalf("New() = %T, want Nop", n)
	}
	if err := n.Notify(context.Background(), "hello"); err != nil {
		t.Errorf("Notify() error = %v, want nil", err)
	}
}

func TestNewWithoutChatIDReturnsNop(t *testing.T) {
	n, err := New("123:abc", 0, zerolog.Nop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, ok := n.(Nop); !ok {
		t.Fatalf("New() = %T, want Nop", n)
	}
}

func TestNopNotifyIgnoresCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := (Nop{}).Notify(ctx, "ignored"); err != nil {
		t.Errorf("Notify() error = %v, want nil", err)
	}
}
