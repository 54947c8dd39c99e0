// Package keys reads single keystrokes from a raw-mode terminal, the
// client's push-to-talk trigger.
package keys

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/term"
)

// Reader dispatches one callback per keystroke until the context ends.
type Reader struct {
	in *os.File
}

func NewReader() *Reader {
	return &Reader{in: os.Stdin}
}

// Run switches the terminal to raw mode and invokes handle for every key
// pressed. It restores the terminal state on return.
func (r *Reader) Run(ctx context.Context, handle func(key rune)) error {
	fd := int(r.in.Fd())
	if !term.IsTerminal(fd) {
		return fmt.Errorf("stdin is not a terminal")
	}

	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("entering raw mode: %w", err)
	}
	defer term.Restore(fd, oldState)

	keyCh := make(chan rune)
	errCh := make(chan error, 1)
	go func() {
		buf := make([]byte, 1)
		for {
			n, err := r.in.Read(buf)
			if err != nil {
				errCh <- err
				return
			}
			if n > 0 {
				select {
				case keyCh <- rune(buf[0]):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errCh:
			return fmt.Errorf("reading keystrokes: %w", err)
		case key := <-keyCh:
			handle(key)
		}
	}
}
