// Copyright (c) 2024 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	appData := t.TempDir()
	base := []string{"--appdata=" + appData, "--nologfile"}

	cfg, cmd, args, err := loadConfig(append(base, "classify", "51", "52"))
	require.NoError(t, err)
	require.Equal(t, "classify", cmd.name)
	require.Equal(t, []string{"51", "52"}, args)
	require.Equal(t, &chaincfg.MainNetParams, cfg.activeNet)
	require.Equal(t, "bdb", cfg.Backend)
	require.Equal(t, filepath.Join(appData, "mainnet", "keys.db"),
		cfg.DBPath)

	cfg, _, _, err = loadConfig(append(base, "--testnet",
		"--backend=sqlite", "create"))
	require.NoError(t, err)
	require.Equal(t, &chaincfg.TestNet3Params, cfg.activeNet)
	require.Equal(t, filepath.Join(appData, "testnet3", "keys.sqlite"),
		cfg.DBPath)

	cfg, _, _, err = loadConfig(append(base, "--backend=postgres",
		"--dsn=postgres://localhost/ismine", "create"))
	require.NoError(t, err)
	require.Equal(t, "postgres://localhost/ismine", cfg.DSN)
}

func TestLoadConfigErrors(t *testing.T) {
	base := []string{"--appdata=" + t.TempDir(), "--nologfile"}

	tests := []struct {
		name string
		args []string
	}{
		{"no command", nil},
		{"unknown command", []string{"frobnicate"}},
		{"two networks", []string{"--testnet", "--regtest", "create"}},
		{"bad backend", []string{"--backend=leveldb", "create"}},
		{"postgres without dsn", []string{"--backend=postgres", "create"}},
		{"dsn with bdb", []string{"--dsn=x", "create"}},
		{"bad debug level", []string{"--debuglevel=loud", "create"}},
		{"bad subsystem", []string{"--debuglevel=XXXX=info", "create"}},
	}
	for _, test := range tests {
		_, _, _, err := loadConfig(append(base, test.args...))
		require.Error(t, err, test.name)
	}

	_, _, _, err := loadConfig(append(base, "--debuglevel=show"))
	require.ErrorIs(t, err, errShown)
}

func TestLoadConfigFile(t *testing.T) {
	appData := t.TempDir()
	conf := "[Application Options]\nsimnet=1\nbackend=sqlite\n"
	err := os.WriteFile(
		filepath.Join(appData, defaultConfigFilename), []byte(conf), 0600,
	)
	require.NoError(t, err)

	cfg, _, _, err := loadConfig([]string{
		"--appdata=" + appData, "--nologfile", "create",
	})
	require.NoError(t, err)
	require.Equal(t, &chaincfg.SimNetParams, cfg.activeNet)
	require.Equal(t, "sqlite", cfg.Backend)

	// Command line options take precedence over the file.
	cfg, _, _, err = loadConfig([]string{
		"--appdata=" + appData, "--nologfile", "--backend=bdb", "create",
	})
	require.NoError(t, err)
	require.Equal(t, "bdb", cfg.Backend)
}

func TestLogFile(t *testing.T) {
	appData := t.TempDir()
	_, _, _, err := loadConfig([]string{"--appdata=" + appData, "create"})
	require.NoError(t, err)
	defer func() {
		logRotator.Close()
		logRotator = nil
	}()

	_, err = os.Stat(filepath.Join(appData, "logs", "mainnet"))
	require.NoError(t, err)
}
