package server

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	qerrors "github.com/lensvol/qotd/src/errors"
	"github.com/lensvol/qotd/src/metrics"
	"github.com/lensvol/qotd/src/quotes"
)

const (
	minRetryDelay = 5 * time.Millisecond
	maxRetryDelay = time.Second
)

// nextRetryDelay doubles delay, starting at minRetryDelay and capped at
// maxRetryDelay.
func nextRetryDelay(delay time.Duration) time.Duration {
	if delay == 0 {
		return minRetryDelay
	}
	delay *= 2
	if delay > maxRetryDelay {
		delay = maxRetryDelay
	}
	return delay
}

// StreamResponder answers every TCP connection with one quote and closes it.
// Nothing is read from the client.
type StreamResponder struct {
	selector     quotes.Selector
	logger       logrus.FieldLogger
	metrics      *metrics.Collector
	writeTimeout time.Duration

	wg sync.WaitGroup
}

// NewStreamResponder creates a StreamResponder. collector may be nil.
// A zero writeTimeout disables the write deadline.
func NewStreamResponder(selector quotes.Selector, logger logrus.FieldLogger, collector *metrics.Collector, writeTimeout time.Duration) *StreamResponder {
	return &StreamResponder{
		selector:     selector,
		logger:       logger.WithField("proto", string(metrics.ProtocolStream)),
		metrics:      collector,
		writeTimeout: writeTimeout,
	}
}

// Listen binds a TCP listener on addr.
func (r *StreamResponder) Listen(addr string) (net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, qerrors.NewBindError("listen tcp "+addr, err)
	}
	return ln, nil
}

// ListenAndServe binds addr and serves until ctx is cancelled.
func (r *StreamResponder) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := r.Listen(addr)
	if err != nil {
		return err
	}
	return r.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then closes ln, waits
// for in-flight connections and returns nil. A non-temporary accept error stops
// the loop and is returned.
func (r *StreamResponder) Serve(ctx context.Context, ln net.Listener) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			ln.Close()
		case <-done:
		}
	}()
	defer r.wg.Wait()

	var delay time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			r.metrics.RecordError(metrics.ProtocolStream)
			var ne net.Error
			if errors.As(err, &ne) && ne.Temporary() { //nolint:staticcheck
				delay = nextRetryDelay(delay)
				r.logger.WithError(err).WithField("retry_in", delay).Warn("accept failed")
				select {
				case <-time.After(delay):
				case <-ctx.Done():
					return nil
				}
				continue
			}
			ln.Close()
			return errors.Wrap(err, "accept failed")
		}
		delay = 0

		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			r.handle(conn)
		}()
	}
}

func (r *StreamResponder) handle(conn net.Conn) {
	defer conn.Close()
	start := time.Now()
	log := r.logger.WithFields(logrus.Fields{
		"remote":     conn.RemoteAddr().String(),
		"request_id": uuid.NewString(),
	})

	quote := r.selector.Pick()
	if r.writeTimeout > 0 {
		if err := conn.SetWriteDeadline(start.Add(r.writeTimeout)); err != nil {
			log.WithError(err).Debug("set write deadline failed")
		}
	}

	// net.Conn.Write returns an error whenever it writes less than the full buffer.
	n, err := conn.Write([]byte(quote))
	if err != nil {
		r.metrics.RecordError(metrics.ProtocolStream)
		log.WithError(err).WithField("written", n).Warn("write quote failed")
		return
	}

	r.metrics.RecordServed(metrics.ProtocolStream, n, time.Since(start))
	log.WithField("bytes", n).Debug("quote served")
}
