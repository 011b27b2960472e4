// Package driver runs the send and receive loops behind the dgram CLI.
//
// Loop policy lives here and not in the sender: when to send, how often,
// what to do after a failed send (print it and keep going) and when to stop
// (context canceled, input exhausted, count reached).
package driver

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/joshuafuller/dgram/receiver"
)

// Sender is the part of *sender.Sender the loops use.
type Sender interface {
	Send(ctx context.Context, payload []byte) (int, error)
}

// Receiver is the part of *receiver.Receiver the listen loop uses.
type Receiver interface {
	Receive(ctx context.Context) (*receiver.Datagram, error)
}

// Stats summarizes a finished loop.
type Stats struct {
	Sent   int
	Failed int
	Bytes  int
}

func (st *Stats) record(n int, err error) {
	st.Bytes += n
	if err != nil {
		st.Failed++
		return
	}
	st.Sent++
}

// Interactive prompts on out, reads one message per line from in and sends
// it. It returns when in reaches EOF or ctx is done.
func Interactive(ctx context.Context, s Sender, in io.Reader, out io.Writer, logger *zap.Logger) (Stats, error) {
	var st Stats

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		// No line length limit: an oversize message fails its own send.
		r := bufio.NewReader(in)
		for {
			line, err := r.ReadString('\n')
			if line != "" {
				select {
				case lines <- strings.TrimRight(line, "\r\n"):
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				if !errors.Is(err, io.EOF) {
					readErr <- err
				}
				return
			}
		}
	}()

	for {
		fmt.Fprint(out, "Enter message: ")

		var (
			line string
			ok   bool
		)
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			return st, nil
		case line, ok = <-lines:
		}
		if !ok {
			fmt.Fprintln(out)
			select {
			case err := <-readErr:
				return st, fmt.Errorf("read input: %w", err)
			default:
			}
			return st, nil
		}

		n, err := s.Send(ctx, []byte(line))
		st.record(n, err)
		if err != nil {
			logger.Warn("send failed", zap.Error(err))
			fmt.Fprintf(out, "Send failed: %v\n", err)
			continue
		}
		fmt.Fprintln(out, "Sent!")
	}
}

// PeriodicConfig controls Periodic.
type PeriodicConfig struct {
	Payload  []byte
	Interval time.Duration
	// Count stops the loop after that many attempts; zero runs until ctx is
	// done.
	Count int
}

// Periodic sends cfg.Payload immediately and then once per interval.
func Periodic(ctx context.Context, s Sender, cfg PeriodicConfig, out io.Writer, logger *zap.Logger) (Stats, error) {
	var st Stats

	if cfg.Interval <= 0 {
		return st, fmt.Errorf("interval must be positive, got %v", cfg.Interval)
	}
	if cfg.Count < 0 {
		return st, fmt.Errorf("count must not be negative, got %d", cfg.Count)
	}

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for attempt := 1; ; attempt++ {
		n, err := s.Send(ctx, cfg.Payload)
		st.record(n, err)
		if err != nil {
			logger.Warn("send failed", zap.Int("attempt", attempt), zap.Error(err))
			fmt.Fprintf(out, "Send failed: %v\n", err)
		} else {
			fmt.Fprintf(out, "Sent: %s\n", cfg.Payload)
		}

		if cfg.Count > 0 && attempt >= cfg.Count {
			return st, nil
		}

		select {
		case <-ctx.Done():
			return st, nil
		case <-ticker.C:
		}
	}
}

// Listen prints each received datagram until ctx is done or count
// datagrams have arrived (count zero means no limit). It returns the
// number of datagrams printed.
func Listen(ctx context.Context, r Receiver, out io.Writer, count int, logger *zap.Logger) (int, error) {
	received := 0
	for count == 0 || received < count {
		d, err := r.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return received, nil
			}
			return received, err
		}
		received++
		logger.Debug("datagram", zap.Stringer("source", d.Source), zap.Int("bytes", len(d.Payload)))
		fmt.Fprintf(out, "Received from %s: %s\n", d.Source, d.Payload)
	}
	return received, nil
}
