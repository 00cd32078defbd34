package app

import (
	"fmt"
	"io"
	"sync"

	"github.com/rbright/smartspeak/internal/session"
)

// transcriptPrinter echoes each transcript entry as "role: text".
type transcriptPrinter struct {
	mu sync.Mutex
	w  io.Writer
}

func newTranscriptPrinter(w io.Writer) *transcriptPrinter {
	return &transcriptPrinter{w: w}
}

func (p *transcriptPrinter) OnTurn(turn session.Turn) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "%s: %s\n", turn.Role, turn.Content)
}
