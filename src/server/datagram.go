package server

import (
	"context"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	qerrors "github.com/lensvol/qotd/src/errors"
	"github.com/lensvol/qotd/src/metrics"
	"github.com/lensvol/qotd/src/quotes"
)

const (
	// MaxDatagramPayload is the largest payload an IPv4 UDP datagram can carry.
	MaxDatagramPayload = 65507

	// DefaultDatagramBufferSize bounds how much of an incoming datagram is read.
	// The payload is discarded either way.
	DefaultDatagramBufferSize = 512
)

// DatagramResponder answers every UDP datagram with one quote sent back to its source.
type DatagramResponder struct {
	selector   quotes.Selector
	logger     logrus.FieldLogger
	metrics    *metrics.Collector
	bufferSize int
}

// NewDatagramResponder creates a DatagramResponder. collector may be nil and a
// non-positive bufferSize selects DefaultDatagramBufferSize.
func NewDatagramResponder(selector quotes.Selector, logger logrus.FieldLogger, collector *metrics.Collector, bufferSize int) *DatagramResponder {
	if bufferSize <= 0 {
		bufferSize = DefaultDatagramBufferSize
	}
	return &DatagramResponder{
		selector:   selector,
		logger:     logger.WithField("proto", string(metrics.ProtocolDatagram)),
		metrics:    collector,
		bufferSize: bufferSize,
	}
}

// Listen binds a UDP socket on addr.
func (r *DatagramResponder) Listen(addr string) (net.PacketConn, error) {
	pc, err := net.ListenPacket("udp", addr)
	if err != nil {
		return nil, qerrors.NewBindError("listen udp "+addr, err)
	}
	return pc, nil
}

// ListenAndServe binds addr and serves until ctx is cancelled.
func (r *DatagramResponder) ListenAndServe(ctx context.Context, addr string) error {
	pc, err := r.Listen(addr)
	if err != nil {
		return err
	}
	return r.Serve(ctx, pc)
}

// Serve reads datagrams from pc until ctx is cancelled, then closes pc and
// returns nil. Failures on a single datagram are logged and skipped. Repeated
// read errors are retried with the same backoff as failed accepts.
func (r *DatagramResponder) Serve(ctx context.Context, pc net.PacketConn) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			pc.Close()
		case <-done:
		}
	}()

	buf := make([]byte, r.bufferSize)
	var delay time.Duration
	for {
		_, src, err := pc.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return errors.Wrap(err, "read datagram failed")
			}
			r.metrics.RecordError(metrics.ProtocolDatagram)
			delay = nextRetryDelay(delay)
			r.logger.WithError(err).WithField("retry_in", delay).Warn("read datagram failed")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil
			}
			continue
		}
		delay = 0
		r.reply(pc, src)
	}
}

func (r *DatagramResponder) reply(pc net.PacketConn, src net.Addr) {
	start := time.Now()
	log := r.logger.WithFields(logrus.Fields{
		"remote":     src.String(),
		"request_id": uuid.NewString(),
	})

	payload := []byte(r.selector.Pick())
	if len(payload) > MaxDatagramPayload {
		log.WithField("bytes", len(payload)).Debug("quote truncated to fit one datagram")
		payload = payload[:MaxDatagramPayload]
	}

	n, err := pc.WriteTo(payload, src)
	if err != nil {
		r.metrics.RecordError(metrics.ProtocolDatagram)
		log.WithError(err).Warn("send quote failed")
		return
	}

	r.metrics.RecordServed(metrics.ProtocolDatagram, n, time.Since(start))
	log.WithField("bytes", n).Debug("quote served")
}
