// Copyright (c) 2013-2024 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/btcsuite/ismine/internal/prompt"
	flags "github.com/jessevdk/go-flags"
)

// errShown is returned by loadConfig when it printed the requested output
// and there is nothing left to run.
var errShown = errors.New("output shown")

func main() {
	if err := ismineMain(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		os.Exit(1)
	}
}

// ismineMain parses the command line, runs the selected command and returns
// once it has completed.
func ismineMain(args []string, in io.Reader, out io.Writer) error {
	cfg, cmd, cmdArgs, err := loadConfig(args)
	if err != nil {
		var e *flags.Error
		if errors.Is(err, errShown) ||
			(errors.As(err, &e) && e.Type == flags.ErrHelp) {

			return nil
		}
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	defer func() {
		if logRotator != nil {
			logRotator.Close()
		}
	}()

	if err := cmd.checkArgs(cmdArgs); err != nil {
		log.Error(err)
		return err
	}

	ctx, cancel := signal.NotifyContext(
		context.Background(), os.Interrupt, syscall.SIGTERM,
	)
	defer cancel()

	reader := bufio.NewReader(in)
	a := &app{
		cfg: cfg,
		out: out,
		readPass: func(prefix string, confirm bool) ([]byte, error) {
			return prompt.PassPrompt(reader, prefix, confirm)
		},
	}

	log.Debugf("Running %s on %s with the %s backend", cmd.name,
		cfg.activeNet.Name, cfg.Backend)

	if err := cmd.run(ctx, a, cmdArgs); err != nil {
		log.Errorf("%s: %v", cmd.name, err)
		return err
	}
	return nil
}
