// Copyright (c) 2015-2024 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package prompt reads passphrases from the terminal.
package prompt

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/btcsuite/ismine/internal/zero"
	"golang.org/x/term"
)

// passReader reads a single passphrase line.
type passReader func() ([]byte, error)

// terminalReader returns a passReader reading without echo when stdin is a
// terminal, and reading a plain line from reader otherwise so passphrases
// can be piped in.
func terminalReader(reader *bufio.Reader) passReader {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		return func() ([]byte, error) {
			pass, err := term.ReadPassword(fd)
			fmt.Fprint(os.Stderr, "\n")
			return pass, err
		}
	}
	return lineReader(reader)
}

// lineReader returns a passReader reading a line from reader.
func lineReader(reader *bufio.Reader) passReader {
	return func() ([]byte, error) {
		line, err := reader.ReadBytes('\n')
		if err != nil && !(errors.Is(err, io.EOF) && len(line) > 0) {
			return nil, err
		}
		return line, nil
	}
}

// PassPrompt prompts the user on standard error for a passphrase with the
// given prefix, leaving standard output to command results.  When
// confirm is set the passphrase must be entered twice, and the prompts
// repeat until both entries match.
func PassPrompt(reader *bufio.Reader, prefix string, confirm bool) ([]byte,
	error) {

	return passPrompt(os.Stderr, terminalReader(reader), prefix, confirm)
}

func passPrompt(w io.Writer, read passReader, prefix string,
	confirm bool) ([]byte, error) {

	for {
		fmt.Fprintf(w, "%s: ", prefix)
		pass, err := read()
		if err != nil {
			return nil, err
		}
		pass = bytes.TrimSpace(pass)
		if len(pass) == 0 {
			continue
		}

		if !confirm {
			return pass, nil
		}

		fmt.Fprint(w, "Confirm passphrase: ")
		again, err := read()
		if err != nil {
			zero.Bytes(pass)
			return nil, err
		}
		again = bytes.TrimSpace(again)
		match := bytes.Equal(pass, again)
		zero.Bytes(again)
		if !match {
			zero.Bytes(pass)
			fmt.Fprintln(w, "The entered passphrases do not match")
			continue
		}

		return pass, nil
	}
}
