// Package spinning provides a friendly spinning clock (or some other spinning symbols)
// to use while a program is compiling or executing a model.
//
// It writes to stderr, so it doesn't mix with the results printed to stdout.
package spinning

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"golang.org/x/term"
	"k8s.io/klog/v2"
)

type Spinning struct {
	wg     sync.WaitGroup
	cancel func()
}

// Output where the spinning symbols are written. Defaults to os.Stderr.
var Output io.Writer = os.Stderr

// Enabled tells whether New displays anything: by default only if stderr is a terminal.
var Enabled = term.IsTerminal(int(os.Stderr.Fd()))

var (
	ThemeAscii = []rune("|/-\\")
	ThemeMoon  = []rune("🌑🌒🌓🌔🌕🌖🌗🌘")
	ThemeClock = []rune("🕐🕑🕒🕓🕔🕕🕖🕗🕘🕙🕚🕛")

	// Theme defaults to ThemeClock, but it can be set to anything else.
	Theme       = ThemeClock
	spinningIdx int
)

// SafeInterrupt will capture SigInt (Ctrl+C) and SigTerm and call the provided onInterrupt.
// If the program haven't exited after gracePeriod, it will call Reset to reset the terminal
// and exit.
func SafeInterrupt(onInterrupt func(), gracePeriod time.Duration) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sigChan
		_, _ = fmt.Fprintln(Output)
		klog.Errorf("Got interrupted (signal %q), shutting down... (%s)", s, gracePeriod)
		if onInterrupt != nil {
			go onInterrupt()
		}

		// Wait for gracePeriod before exiting.
		time.Sleep(gracePeriod)
		Reset()
		klog.Fatalf("Graceful shutting down %s period expired, exiting.", gracePeriod)
	}()
}

// Reset terminal: make cursor visible, restore default terminal colors.
func Reset() {
	_, _ = fmt.Fprint(Output, "\033[?25h\033[39;49;0m\n") // Restore cursor and colors.
}

// New starts a spinning display, after the given message, that runs on a separate GoRoutine.
// It stops (and erases the message) when Spinning.Done is called.
func New(ctx context.Context, message string) *Spinning {
	s := &Spinning{}
	if !Enabled {
		return s
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()
		_, _ = fmt.Fprint(Output, "\033[?25l") // Hide cursor.
		defer fmt.Fprint(Output, "\033[?25h") // Restore cursor.

		_, _ = fmt.Fprintf(Output, "%s  ", message)
		for {
			spinningIdx = spinningIdx % len(Theme)
			_, _ = fmt.Fprintf(Output, "\b\b%c", Theme[spinningIdx])
			spinningIdx++
			select {
			case <-ctx.Done():
				_, _ = fmt.Fprint(Output, "\r\033[0K") // Erase line.
				return
			case <-ticker.C:
				// continue
			}
		}
	}()
	return s
}

func (s *Spinning) Done() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.wg.Wait()
}
