// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package integration

import (
	"strings"

	"github.com/samber/oops"
)

// ParsedInput is a command line split into name and arguments.
type ParsedInput struct {
	Name string // lower-cased first token
	Args string // remainder, internal whitespace preserved
	Raw  string
}

// Parse splits input at the first space or tab.
func Parse(input string) (*ParsedInput, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return nil, oops.Code(CodeEmptyInput).Errorf("no command provided")
	}

	name, args := trimmed, ""
	if idx := strings.IndexAny(trimmed, " \t"); idx >= 0 {
		name = trimmed[:idx]
		args = strings.TrimLeft(trimmed[idx+1:], " \t")
	}

	return &ParsedInput{
		Name: strings.ToLower(name),
		Args: args,
		Raw:  input,
	}, nil
}

// Fields splits the argument string on whitespace.
func (p *ParsedInput) Fields() []string {
	return strings.Fields(p.Args)
}
