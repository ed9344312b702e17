// Copyright (c) 2024 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package prompt

import (
	"bufio"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func reader(s string) *bufio.Reader {
	return bufio.NewReader(strings.NewReader(s))
}

func TestPassPrompt(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		confirm bool
		want    string
		err     error
	}{
		{"single", "secret\n", false, "secret", nil},
		{"no trailing newline", "secret", false, "secret", nil},
		{"skips empty", "\n  \nsecret\n", false, "secret", nil},
		{"confirmed", "secret\nsecret\n", true, "secret", nil},
		{"retry on mismatch", "a\nb\nsecret\nsecret\n", true, "secret", nil},
		{"eof", "", false, "", io.EOF},
		{"eof before confirm", "secret\n", true, "", io.EOF},
	}

	for _, test := range tests {
		var out strings.Builder
		pass, err := passPrompt(
			&out, lineReader(reader(test.input)), "Passphrase",
			test.confirm,
		)
		if test.err != nil {
			require.ErrorIs(t, err, test.err, test.name)
			continue
		}
		require.NoError(t, err, test.name)
		require.Equal(t, test.want, string(pass), test.name)
		require.True(t, strings.HasPrefix(out.String(), "Passphrase: "),
			test.name)
	}
}

// TestPassPromptStderr ensures prompts never reach standard output.
func TestPassPromptStderr(t *testing.T) {
	stdinR, stdinW, err := os.Pipe()
	require.NoError(t, err)
	defer stdinW.Close()
	stdoutR, stdoutW, err := os.Pipe()
	require.NoError(t, err)
	stderrR, stderrW, err := os.Pipe()
	require.NoError(t, err)

	stdin, stdout, stderr := os.Stdin, os.Stdout, os.Stderr
	os.Stdin, os.Stdout, os.Stderr = stdinR, stdoutW, stderrW
	pass, err := PassPrompt(reader("secret\nsecret\n"), "Passphrase", true)
	os.Stdin, os.Stdout, os.Stderr = stdin, stdout, stderr
	require.NoError(t, err)
	require.Equal(t, "secret", string(pass))

	require.NoError(t, stdoutW.Close())
	require.NoError(t, stderrW.Close())
	gotStdout, err := io.ReadAll(stdoutR)
	require.NoError(t, err)
	gotStderr, err := io.ReadAll(stderrR)
	require.NoError(t, err)

	require.Empty(t, gotStdout)
	require.Contains(t, string(gotStderr), "Passphrase: ")
}
