// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package tls

import (
	"crypto/tls"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadTLSConfigDisabled(t *testing.T) {
	cfg, err := LoadTLSConfig(nil)
	require.NoError(t, err)
	assert.Nil(t, cfg)

	cfg, err = LoadTLSConfig(&Config{CertFile: "missing.pem", KeyFile: "missing.key"})
	require.NoError(t, err)
	assert.Nil(t, cfg)
}

func TestLoadTLSConfig(t *testing.T) {
	cfg, err := LoadTLSConfig(&Config{Enabled: true, ServerName: "rabbit.local"})
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, "rabbit.local", cfg.ServerName)
	assert.Equal(t, uint16(tls.VersionTLS12), cfg.MinVersion)
	assert.Nil(t, cfg.RootCAs)
	assert.Equal(t, "TLS", SecurityStatus(cfg))
}

func TestLoadTLSConfigErrors(t *testing.T) {
	dir := t.TempDir()
	badCA := filepath.Join(dir, "ca.pem")
	require.NoError(t, os.WriteFile(badCA, []byte("not a certificate"), 0o600))

	tests := []struct {
		name    string
		cfg     Config
		wantErr error
	}{
		{name: "cert without key", cfg: Config{Enabled: true, CertFile: "client.pem"}, wantErr: errMissingKey},
		{name: "missing key pair", cfg: Config{Enabled: true, CertFile: "client.pem", KeyFile: "client.key"}, wantErr: errLoadCerts},
		{name: "missing CA", cfg: Config{Enabled: true, ServerCAFile: filepath.Join(dir, "missing.pem")}, wantErr: errLoadServerCA},
		{name: "invalid CA", cfg: Config{Enabled: true, ServerCAFile: badCA}, wantErr: errAppendCA},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadTLSConfig(&tt.cfg)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestSecurityStatus(t *testing.T) {
	assert.Equal(t, "no TLS", SecurityStatus(nil))
	assert.Equal(t, "TLS with client certificate", SecurityStatus(&tls.Config{Certificates: []tls.Certificate{{}}}))
}
