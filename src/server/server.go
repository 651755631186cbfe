// Package server runs the quote responders: one quote per TCP connection and one
// quote per UDP datagram, both drawn from the same Selector.
package server

import (
	"context"
	stderrors "errors"
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	qerrors "github.com/lensvol/qotd/src/errors"
	"github.com/lensvol/qotd/src/metrics"
	"github.com/lensvol/qotd/src/quotes"
)

// Server owns the stream and datagram responders.
type Server struct {
	selector     quotes.Selector
	logger       logrus.FieldLogger
	metrics      *metrics.Collector
	streamAddr   string
	datagramAddr string
	writeTimeout time.Duration
	bufferSize   int

	ready chan struct{}
	mu    sync.Mutex
	addrs Addrs
}

// Addrs holds the bound responder addresses. A nil field means that responder
// is disabled or failed to bind.
type Addrs struct {
	Stream   net.Addr
	Datagram net.Addr
}

// Option configures a Server.
type Option func(*Server) error

// WithSelector sets the quote source. Required.
func WithSelector(selector quotes.Selector) Option {
	return func(s *Server) error {
		if selector == nil {
			return errors.New("nil selector")
		}
		s.selector = selector
		return nil
	}
}

// WithLogger sets the logger used by both responders.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(s *Server) error {
		s.logger = logger
		return nil
	}
}

// WithMetrics sets the collector that counts served quotes.
func WithMetrics(collector *metrics.Collector) Option {
	return func(s *Server) error {
		s.metrics = collector
		return nil
	}
}

// WithStreamAddr sets the TCP bind address. An empty address disables TCP.
func WithStreamAddr(addr string) Option {
	return func(s *Server) error {
		s.streamAddr = addr
		return nil
	}
}

// WithDatagramAddr sets the UDP bind address. An empty address disables UDP.
func WithDatagramAddr(addr string) Option {
	return func(s *Server) error {
		s.datagramAddr = addr
		return nil
	}
}

// WithWriteTimeout bounds how long a TCP client may take to accept its quote.
func WithWriteTimeout(d time.Duration) Option {
	return func(s *Server) error {
		if d < 0 {
			return errors.Errorf("negative write timeout %s", d)
		}
		s.writeTimeout = d
		return nil
	}
}

// WithDatagramBufferSize sets the UDP read buffer size.
func WithDatagramBufferSize(n int) Option {
	return func(s *Server) error {
		if n <= 0 || n > 65535 {
			return errors.Errorf("datagram buffer size %d out of range", n)
		}
		s.bufferSize = n
		return nil
	}
}

// New creates a Server with the given options.
func New(opts ...Option) (*Server, error) {
	s := &Server{
		logger:     logrus.StandardLogger(),
		bufferSize: DefaultDatagramBufferSize,
		ready:      make(chan struct{}),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, errors.Wrap(err, "apply server option failed")
		}
	}
	if s.selector == nil {
		return nil, qerrors.NewConfigError("server needs a quote selector", nil)
	}
	if s.streamAddr == "" && s.datagramAddr == "" {
		return nil, qerrors.NewConfigError("both tcp and udp are disabled", nil)
	}
	return s, nil
}

// Ready is closed once Run has attempted to bind every enabled responder.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Addrs returns the addresses bound by Run. Valid after Ready is closed.
func (s *Server) Addrs() Addrs {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addrs
}

// Run binds and serves both responders until ctx is cancelled. A responder that
// fails to bind or stops with an error is logged and does not affect the other.
// Run returns an error only when every enabled responder failed.
func (s *Server) Run(ctx context.Context) error {
	stream := NewStreamResponder(s.selector, s.logger, s.metrics, s.writeTimeout)
	datagram := NewDatagramResponder(s.selector, s.logger, s.metrics, s.bufferSize)

	var (
		wg               sync.WaitGroup
		streamErr, dgErr error
		enabled, failed  int
	)

	if s.streamAddr != "" {
		enabled++
		ln, err := stream.Listen(s.streamAddr)
		if err != nil {
			streamErr = err
			s.logger.WithError(err).Error("tcp responder not started")
		} else {
			s.setAddr(func(a *Addrs) { a.Stream = ln.Addr() })
			wg.Add(1)
			go func() {
				defer wg.Done()
				streamErr = stream.Serve(ctx, ln)
			}()
		}
	}

	if s.datagramAddr != "" {
		enabled++
		pc, err := datagram.Listen(s.datagramAddr)
		if err != nil {
			dgErr = err
			s.logger.WithError(err).Error("udp responder not started")
		} else {
			s.setAddr(func(a *Addrs) { a.Datagram = pc.LocalAddr() })
			wg.Add(1)
			go func() {
				defer wg.Done()
				dgErr = datagram.Serve(ctx, pc)
			}()
		}
	}

	close(s.ready)
	wg.Wait()

	for _, err := range []error{streamErr, dgErr} {
		if err != nil {
			failed++
		}
	}
	if streamErr != nil && s.Addrs().Stream != nil {
		s.logger.WithError(streamErr).Error("tcp responder stopped")
	}
	if dgErr != nil && s.Addrs().Datagram != nil {
		s.logger.WithError(dgErr).Error("udp responder stopped")
	}
	if failed == enabled {
		return errors.Wrap(stderrors.Join(streamErr, dgErr), "all responders failed")
	}
	return nil
}

func (s *Server) setAddr(update func(*Addrs)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	update(&s.addrs)
}
