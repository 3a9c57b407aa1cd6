package main

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuoteCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{
		"quote", "--timezone", "UTC",
		"--start", "2025-03-03T22:00", "--end", "2025-03-04T07:00", "--ratio", "1:2",
	})
	require.NoError(t, rootCmd.Execute())

	var got map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, "sleepover", got["shift_type"])
	assert.Equal(t, "192.00", got["amount"]) // 320.00 flat x 0.6
	assert.Equal(t, "$192.00", got["amount_formatted"])
}

func TestParseLocal(t *testing.T) {
	loc := time.FixedZone("AEST", 10*3600)

	got, err := parseLocal("2025-07-01T09:30", loc)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 30, 23, 30, 0, 0, time.UTC), got.UTC())

	got, err = parseLocal("2025-07-01T09:30:00Z", loc)
	require.NoError(t, err)
	assert.Equal(t, 9, got.UTC().Hour())

	_, err = parseLocal("tomorrow", loc)
	assert.Error(t, err)
}
