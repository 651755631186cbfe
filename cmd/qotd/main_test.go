package main

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lensvol/qotd/src/config"
	"github.com/lensvol/qotd/src/server"
	"github.com/lensvol/qotd/src/strfile"
)

func parse(t *testing.T, args ...string) (*cobra.Command, *cliFlags) {
	t.Helper()
	cmd := &cobra.Command{}
	flags := &cliFlags{}
	registerFlags(cmd, flags)
	require.NoError(t, cmd.ParseFlags(args))
	return cmd, flags
}

func TestLoadConfigDefaults(t *testing.T) {
	cmd, flags := parse(t)
	cfg, err := loadConfig(cmd, flags, []string{"fortunes"})
	require.NoError(t, err)

	assert.Equal(t, "fortunes", cfg.QuotesConfig.File)
	assert.Equal(t, "127.0.0.1:17", cfg.ServerConfig.BindAddr)
	assert.False(t, cfg.MetricsConfig.Enabled)
}

func TestLoadConfigPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "qotd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"quotes:\n  file: /srv/fortunes\nserver:\n  bind_addr: 127.0.0.1:1017\nlog:\n  level: debug\n"), 0o644))
	t.Setenv("QOTD_LOG_LEVEL", "warn")
	t.Setenv("QOTD_BIND", "127.0.0.1:2017")

	cmd, flags := parse(t, "-c", path, "--bind", "127.0.0.1:3017", "--no-udp")
	cfg, err := loadConfig(cmd, flags, nil)
	require.NoError(t, err)

	assert.Equal(t, "/srv/fortunes", cfg.QuotesConfig.File)
	assert.Equal(t, "warn", cfg.LogConfig.Level)
	assert.Equal(t, "127.0.0.1:3017", cfg.ServerConfig.BindAddr)
	assert.True(t, cfg.ServerConfig.DisableDatagram)
	assert.False(t, cfg.ServerConfig.DisableStream)
}

func TestLoadConfigRejects(t *testing.T) {
	cmd, flags := parse(t)
	_, err := loadConfig(cmd, flags, nil)
	assert.Error(t, err, "missing quote file")

	cmd, flags = parse(t, "--no-tcp", "--no-udp")
	_, err = loadConfig(cmd, flags, []string{"fortunes"})
	assert.Error(t, err, "both protocols disabled")

	cmd, flags = parse(t, "--bind", "localhost")
	_, err = loadConfig(cmd, flags, []string{"fortunes"})
	assert.Error(t, err, "bind without port")
}

func TestMetricsAddrFlagEnablesMetrics(t *testing.T) {
	cmd, flags := parse(t, "--metrics-addr", "127.0.0.1:0")
	cfg, err := loadConfig(cmd, flags, []string{"fortunes"})
	require.NoError(t, err)
	assert.True(t, cfg.MetricsConfig.Enabled)
	assert.Equal(t, "127.0.0.1:0", cfg.MetricsConfig.Addr)
}

func TestServePrintsIndexSummary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fortunes")
	require.NoError(t, os.WriteFile(path, []byte("one\n%\ntwo\n%\n"), 0o644))
	h, err := strfile.BuildFile(path, strfile.DefaultDelim, 0)
	require.NoError(t, err)
	require.NoError(t, strfile.WriteIndex(path+strfile.IndexSuffix, h))

	cfg := config.DefaultConfig()
	cfg.QuotesConfig.File = path
	cfg.ServerConfig.BindAddr = "127.0.0.1:0"
	cfg.MetricsConfig.Enabled = true
	cfg.MetricsConfig.Addr = "127.0.0.1:0"

	logger, _ := test.NewNullLogger()
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	var out bytes.Buffer
	require.NoError(t, serve(ctx, cfg, &out, logger))

	assert.Contains(t, out.String(), "Strings:\t2\n")
	// Port 0 may give both protocols the same number, which prints one line.
	assert.Regexp(t, `TCP(/UDP)? server listening on 127\.0\.0\.1:[1-9][0-9]*\.\n`, out.String())
	assert.Regexp(t, `(TCP/)?UDP server listening on 127\.0\.0\.1:[1-9][0-9]*\.\n`, out.String())
}

func TestServeLegacyFileSkipsSummary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fortunes")
	require.NoError(t, os.WriteFile(path, []byte("one\n%\n"), 0o644))

	cfg := config.DefaultConfig()
	cfg.QuotesConfig.File = path
	cfg.ServerConfig.BindAddr = "127.0.0.1:0"
	cfg.ServerConfig.DisableDatagram = true

	logger, _ := test.NewNullLogger()
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	var out bytes.Buffer
	require.NoError(t, serve(ctx, cfg, &out, logger))
	assert.Regexp(t, `^TCP server listening on 127\.0\.0\.1:[1-9][0-9]*\.\n$`, out.String())
}

func TestServeDescribesHeaderOfAbandonedIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fortunes")
	require.NoError(t, os.WriteFile(path, []byte("one\n%\ntwo\n%\n"), 0o644))
	h := &strfile.Header{
		Version: strfile.DefaultVersion,
		Delim:   strfile.DefaultDelim,
		Offsets: []uint32{0, 9999},
	}
	require.NoError(t, strfile.WriteIndex(path+strfile.IndexSuffix, h))

	cfg := config.DefaultConfig()
	cfg.QuotesConfig.File = path
	cfg.ServerConfig.BindAddr = "127.0.0.1:0"
	cfg.ServerConfig.DisableDatagram = true

	logger, _ := test.NewNullLogger()
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	var out bytes.Buffer
	require.NoError(t, serve(ctx, cfg, &out, logger))
	assert.Contains(t, out.String(), "Strings:\t2\n")
	assert.Contains(t, out.String(), "TCP server listening on 127.0.0.1:")
}

func TestListeningLines(t *testing.T) {
	tcp := &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 17}
	udp := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 17}
	assert.Equal(t, []string{"TCP/UDP server listening on 127.0.0.1:17."},
		listeningLines(server.Addrs{Stream: tcp, Datagram: udp}))

	other := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 1017}
	assert.Equal(t, []string{
		"TCP server listening on 127.0.0.1:17.",
		"UDP server listening on 127.0.0.1:1017.",
	}, listeningLines(server.Addrs{Stream: tcp, Datagram: other}))

	assert.Empty(t, listeningLines(server.Addrs{}))
}

func TestServeFailsWithoutQuotes(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.QuotesConfig.File = filepath.Join(t.TempDir(), "missing")
	cfg.ServerConfig.BindAddr = "127.0.0.1:0"

	logger, _ := test.NewNullLogger()
	var out bytes.Buffer
	assert.Error(t, serve(context.Background(), cfg, &out, logger))
}
