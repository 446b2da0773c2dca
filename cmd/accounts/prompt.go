// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/term"
)

// Prompter reads interactive input.
type Prompter interface {
	// Line reads one line of visible input.
	Line(label string) (string, error)
	// Password reads one line without echo when the input is a terminal.
	Password(label string) (string, error)
}

type termPrompter struct {
	in     *bufio.Reader
	fd     int
	isTerm bool
	out    io.Writer
}

// newTermPrompter reads from in and writes labels to out. Echo is disabled
// for passwords only when in is a terminal; piped input is read line by line.
func newTermPrompter(in io.Reader, out io.Writer) Prompter {
	p := &termPrompter{in: bufio.NewReader(in), out: out}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		p.fd = int(f.Fd())
		p.isTerm = true
	}
	return p
}

func (p *termPrompter) label(label string) {
	if p.isTerm {
		_, _ = fmt.Fprintf(p.out, "%s: ", label)
	}
}

func (p *termPrompter) Line(label string) (string, error) {
	p.label(label)
	line, err := p.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", oops.Code("INPUT_FAILED").With("prompt", label).Wrap(err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (p *termPrompter) Password(label string) (string, error) {
	if !p.isTerm {
		return p.Line(label)
	}
	p.label(label)
	secret, err := term.ReadPassword(p.fd)
	_, _ = fmt.Fprintln(p.out)
	if err != nil {
		return "", oops.Code("INPUT_FAILED").With("prompt", label).Wrap(err)
	}
	return string(secret), nil
}

// promptNewPassword asks for a password and its confirmation. The returned
// confirmation is nil when confirm is false.
func promptNewPassword(p Prompter, label string, confirm bool) (string, *string, error) {
	password, err := p.Password(label)
	if err != nil {
		return "", nil, err
	}
	if !confirm {
		return password, nil, nil
	}
	again, err := p.Password("Confirm " + strings.ToLower(label))
	if err != nil {
		return "", nil, err
	}
	return password, &again, nil
}
