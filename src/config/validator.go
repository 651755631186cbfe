package config

import (
	"fmt"
	"net"
	"strconv"

	"github.com/sirupsen/logrus"

	qerrors "github.com/lensvol/qotd/src/errors"
)

// ValidateConfig validates a configuration and returns an error if invalid.
// The quote file itself is not required here: the CLI supplies it as an argument.
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return qerrors.NewConfigError("config is nil", nil)
	}

	if cfg.QuotesConfig.IndexSuffix == "" {
		return qerrors.NewConfigError("quotes.index_suffix is required", nil)
	}

	if err := validateHostPort(cfg.ServerConfig.BindAddr); err != nil {
		return qerrors.NewConfigError("server.bind_addr is invalid", err)
	}
	if cfg.ServerConfig.DisableStream && cfg.ServerConfig.DisableDatagram {
		return qerrors.NewConfigError("server: at least one of stream or datagram must be enabled", nil)
	}
	if cfg.ServerConfig.WriteTimeoutMs < 0 {
		return qerrors.NewConfigError("server.write_timeout_ms must be >= 0", nil)
	}
	if cfg.ServerConfig.DatagramBufferSize <= 0 || cfg.ServerConfig.DatagramBufferSize > 65535 {
		return qerrors.NewConfigError("server.datagram_buffer_size must be between 1 and 65535", nil)
	}

	if _, err := logrus.ParseLevel(cfg.LogConfig.Level); err != nil {
		return qerrors.NewConfigError("log.level is invalid", err)
	}

	if cfg.MetricsConfig.Enabled {
		if err := validateHostPort(cfg.MetricsConfig.Addr); err != nil {
			return qerrors.NewConfigError("metrics.addr is invalid", err)
		}
	}

	return nil
}

func validateHostPort(addr string) error {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return fmt.Errorf("port %q is not a number", port)
	}
	if n < 0 || n > 65535 {
		return fmt.Errorf("port %d out of range", n)
	}
	return nil
}
