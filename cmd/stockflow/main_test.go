package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReadConsole(t *testing.T) {
	in := strings.NewReader("status\n\n  /price aapl \nquiet\n")
	var out bytes.Buffer
	var got []string

	readConsole(context.Background(), in, &out, func(line string) string {
		got = append(got, line)
		if line == "/quiet" {
			return ""
		}
		return "ok " + line
	})

	assert.Equal(t, []string{"/status", "/price aapl", "/quiet"}, got)
	assert.Equal(t, "ok /status\nok /price aapl\n", out.String())
}

func TestReadConsoleStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	readConsole(ctx, strings.NewReader("status\n"), &bytes.Buffer{}, func(string) string {
		called = true
		return ""
	})
	assert.False(t, called)
}

func TestCommandNamesUnique(t *testing.T) {
	seen := make(map[string]bool)
	for _, c := range commands {
		assert.False(t, seen[c.Name()], "duplicate command %s", c.Name())
		seen[c.Name()] = true
		assert.NotEmpty(t, c.Synopsis())
		assert.True(t, strings.HasPrefix(c.Usage(), "stockflow "+c.Name()))
	}
}

func TestReadVersionDefault(t *testing.T) {
	t.Chdir(t.TempDir())
	assert.Equal(t, DevVersion, readVersion())
}
