// Copyright (c) 2024 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package cfgutil

import (
	"os"
	"path/filepath"
	"testing"

	flags "github.com/jessevdk/go-flags"
	"github.com/stretchr/testify/require"
)

func TestFileExists(t *testing.T) {
	dir := t.TempDir()

	ok, err := FileExists(dir)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = FileExists(filepath.Join(dir, "missing"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCleanAndExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	t.Setenv("ISMINE_TEST_DIR", "/tmp/ismine")

	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"~", filepath.Clean(home)},
		{"~/keys.db", filepath.Join(home, "keys.db")},
		{"$ISMINE_TEST_DIR/keys.db", "/tmp/ismine/keys.db"},
		{"/a/b/../c", "/a/c"},
	}
	for _, test := range tests {
		require.Equal(t, test.want, CleanAndExpandPath(test.in), test.in)
	}
}

func TestExplicitString(t *testing.T) {
	var opts struct {
		Backend *ExplicitString `long:"backend"`
	}

	opts.Backend = NewExplicitString("bdb")
	_, err := flags.ParseArgs(&opts, nil)
	require.NoError(t, err)
	require.Equal(t, "bdb", opts.Backend.Value)
	require.False(t, opts.Backend.ExplicitlySet())

	opts.Backend = NewExplicitString("bdb")
	_, err = flags.ParseArgs(&opts, []string{"--backend=bdb"})
	require.NoError(t, err)
	require.Equal(t, "bdb", opts.Backend.Value)
	require.True(t, opts.Backend.ExplicitlySet())
}
