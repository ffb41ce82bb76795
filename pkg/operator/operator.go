// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

// Package operator decides when the publisher sends the next message.
package operator

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// DefaultQuestion is asked before every message.
const DefaultQuestion = "Do you wish to send a message?"

// Prompt asks a yes/no question on out and reads the answer from in.
// An empty answer means yes. End of input means no.
type Prompt struct {
	question string
	in       io.Reader
	out      io.Writer

	once  sync.Once
	lines chan line
}

type line struct {
	text string
	err  error
}

// NewPrompt returns a Prompt asking question. An empty question uses DefaultQuestion.
func NewPrompt(in io.Reader, out io.Writer, question string) *Prompt {
	if question == "" {
		question = DefaultQuestion
	}

	return &Prompt{question: question, in: in, out: out}
}

// Next implements broker.OperatorLoop. Unrecognized answers repeat the question.
// A done ctx returns ctx.Err(); the pending read is left to the reader goroutine.
func (p *Prompt) Next(ctx context.Context) (bool, error) {
	p.once.Do(p.start)

	for {
		if _, err := fmt.Fprintf(p.out, "%s [Y/n] ", p.question); err != nil {
			return false, fmt.Errorf("write prompt: %w", err)
		}

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case l, ok := <-p.lines:
			if !ok {
				return false, nil
			}

			if l.err != nil {
				return false, fmt.Errorf("read answer: %w", l.err)
			}

			switch strings.ToLower(strings.TrimSpace(l.text)) {
			case "", "y", "yes":
				return true, nil
			case "n", "no":
				return false, nil
			}
		}
	}
}

// start reads answers line by line until the input ends.
func (p *Prompt) start() {
	p.lines = make(chan line)

	go func() {
		defer close(p.lines)

		scanner := bufio.NewScanner(p.in)
		for scanner.Scan() {
			p.lines <- line{text: scanner.Text()}
		}

		if err := scanner.Err(); err != nil {
			p.lines <- line{err: err}
		}
	}()
}

// Count says yes n times, then no.
type Count struct {
	left int
}

// NewCount returns a loop that allows n messages.
func NewCount(n int) *Count {
	return &Count{left: n}
}

// Next implements broker.OperatorLoop.
func (c *Count) Next(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	if c.left <= 0 {
		return false, nil
	}

	c.left--

	return true, nil
}
