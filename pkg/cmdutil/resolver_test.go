// Copyright (c) 2023 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cmdutil

import (
	"errors"
	"io"
	"testing"

	"github.com/alecthomas/kong"
)

func scripted(t *testing.T, inputs ...string) *Prompter {
	return &Prompter{
		Out: io.Discard,
		Read: func() ([]byte, error) {
			if len(inputs) == 0 {
				t.Error("Unexpected password prompt")
				return nil, errors.New("no input")
			}
			in := inputs[0]
			inputs = inputs[1:]
			return []byte(in), nil
		},
	}
}

func TestResolveCurrentPassword(t *testing.T) {
	tests := []struct {
		name   string
		args   []string
		inputs []string
		want   string
	}{
		{"prompted", nil, []string{"secret"}, "secret"},
		{"empty selects factory", nil, []string{""}, ""},
		{"flag given", []string{"--password", "given"}, nil, "given"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var cli struct {
				PasswordEmbed `embed:""`
			}
			parser, err := kong.New(&cli, kong.Resolvers(ResolvePassword(scripted(t, tc.inputs...))))
			if err != nil {
				t.Fatalf("kong.New failed: %v", err)
			}
			if _, err := parser.Parse(tc.args); err != nil {
				t.Fatalf("Parse failed: %v", err)
			}
			if cli.Password != tc.want {
				t.Errorf("Password %q, want %q", cli.Password, tc.want)
			}
		})
	}
}

func TestResolveNewPasswordConfirm(t *testing.T) {
	var cli struct {
		NewPasswordEmbed `embed:""`
	}
	p := scripted(t, "first", "typo", "second", "second")
	parser, err := kong.New(&cli, kong.Resolvers(ResolvePassword(p)))
	if err != nil {
		t.Fatalf("kong.New failed: %v", err)
	}
	if _, err := parser.Parse(nil); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cli.NewPassword != "second" {
		t.Errorf("NewPassword %q, want the confirmed entry", cli.NewPassword)
	}
}
