// Copyright (c) 2023 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cmdutil

import (
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"

	"github.com/alecthomas/kong"
	"golang.org/x/term"
)

// Prompter reads passwords without echo.
type Prompter struct {
	Out  io.Writer
	Read func() ([]byte, error)
}

// TerminalPrompter prompts on stdout and reads from the stdin terminal.
func TerminalPrompter() *Prompter {
	return &Prompter{
		Out:  os.Stdout,
		Read: func() ([]byte, error) { return term.ReadPassword(int(os.Stdin.Fd())) },
	}
}

func (p *Prompter) read(label string) (string, error) {
	fmt.Fprintf(p.Out, "%s: ", label)
	b, err := p.Read()
	fmt.Fprint(p.Out, "\n")
	if err != nil {
		return "", fmt.Errorf("password could not be read: %v", err)
	}
	return strings.TrimSpace(string(b)), nil
}

// ResolvePassword returns a kong.Resolver that prompts for password flags
// without a value. Required flags are always prompted for, optional ones
// only when tagged prompt:"". Flags tagged confirm:"" are entered twice.
func ResolvePassword(p *Prompter) kong.Resolver {
	return kong.ResolverFunc(func(ctx *kong.Context, parent *kong.Path, flag *kong.Flag) (interface{}, error) {
		if flag.Tag.Type != "password" || flag.Value.Set && !flag.Value.Target.IsZero() {
			return nil, nil
		}
		if !flag.Required && !flag.Tag.Has("prompt") {
			return nil, nil
		}

		if flag.Target.Kind() != reflect.String {
			return nil, fmt.Errorf(`'password' type must be applied to a string not %s`, flag.Target.Type())
		}

		if flag.Help != "" {
			fmt.Fprintln(p.Out, flag.Help)
		}
		name := strings.ToTitle(strings.ReplaceAll(flag.Name, "-", " "))
		for {
			pwd, err := p.read("Enter " + name)
			if err != nil {
				return "", err
			}
			if pwd == "" {
				return nil, nil
			}
			if !flag.Tag.Has("confirm") {
				return pwd, nil
			}

			pwd2, err := p.read("Re-enter " + name)
			if err != nil {
				return "", err
			}
			if pwd == pwd2 {
				return pwd, nil
			}
			fmt.Fprintln(p.Out, "Passwords do not match. Please try again.")
		}
	})
}
