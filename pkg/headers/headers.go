// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

// Package headers converts key=value lists into AMQP header tables and back.
package headers

import (
	"sort"
	"strings"

	"github.com/rabbitmq/amqp091-go"
)

const (
	separator = "="
	listSep   = ","
	renderSep = ", "
)

// Split breaks a comma separated list into entries. An empty string yields nil.
func Split(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	return strings.Split(raw, listSep)
}

// Parse builds a header table from key=value entries.
// Each entry is split on its first "=" only; entries without one are skipped
// and returned in invalid so the caller can report them. Duplicate keys keep
// the last value. No entries at all yields a nil table, which callers must
// keep distinct from an empty one.
func Parse(entries []string) (table amqp091.Table, invalid []string) {
	if len(entries) == 0 {
		return nil, nil
	}

	table = make(amqp091.Table, len(entries))

	for _, entry := range entries {
		if strings.TrimSpace(entry) == "" {
			continue
		}

		key, value, ok := strings.Cut(entry, separator)
		if !ok {
			invalid = append(invalid, entry)

			continue
		}

		table[strings.TrimSpace(key)] = value
	}

	return table, invalid
}

// Render formats a received header table as key=value pairs joined by ", ".
// Keys are sorted. Values that are not long strings render as an empty string.
func Render(table map[string]interface{}) string {
	if len(table) == 0 {
		return ""
	}

	keys := make([]string, 0, len(table))
	for k := range table {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	var b strings.Builder

	for i, k := range keys {
		if i > 0 {
			b.WriteString(renderSep)
		}

		b.WriteString(k)
		b.WriteString(separator)

		if v, ok := table[k].(string); ok {
			b.WriteString(v)
		}
	}

	return b.String()
}
