package main

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/huigrowth/careauth"
)

// terminalNotifier prints store notifications as single status lines.
type terminalNotifier struct {
	mu sync.Mutex
	w  io.Writer
}

func (n *terminalNotifier) Notify(_ context.Context, note careauth.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()

	switch note.Level {
	case careauth.LevelSuccess:
		fmt.Fprintf(n.w, "\033[32m✓\033[0m %s\n", note.Message)
	case careauth.LevelError:
		fmt.Fprintf(n.w, "\033[31m✗\033[0m %s\n", note.Message)
	case careauth.LevelWarning:
		fmt.Fprintf(n.w, "\033[33m⚠\033[0m %s\n", note.Message)
	default:
		fmt.Fprintf(n.w, "  %s\n", note.Message)
	}
}
