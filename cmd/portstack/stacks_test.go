package main

import (
	"testing"

	"github.com/function61/gokit/assert"
)

func TestParseEnvPairs(t *testing.T) {
	pairs, err := parseEnvPairs([]string{"NODE_ENV=production", "DEBUG=false"})

	assert.Assert(t, err == nil)
	assert.Assert(t, len(pairs) == 2)
	assert.EqualString(t, pairs[0].Name, "NODE_ENV")
	assert.EqualString(t, pairs[0].Value, "production")
	assert.EqualString(t, pairs[1].Name, "DEBUG")

	// order preserved, duplicates untouched - precedence is the remote
	// system's business
	pairs, err = parseEnvPairs([]string{"KEY=first", "KEY=second"})
	assert.Assert(t, err == nil)
	assert.Assert(t, len(pairs) == 2)
	assert.EqualString(t, pairs[1].Value, "second")

	_, err = parseEnvPairs([]string{"missingseparator"})
	assert.Assert(t, err != nil)
}

func TestStackTypeName(t *testing.T) {
	assert.EqualString(t, stackTypeName(1), "swarm")
	assert.EqualString(t, stackTypeName(2), "compose")
	assert.EqualString(t, stackTypeName(9), "unknown (9)")
}
