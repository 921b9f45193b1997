package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestJudgeTarget(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 30, 0, 0, time.FixedZone("CET", 3600))

	// No flag: the moment of judgment, in UTC.
	assert.Equal(t, "2026-08-31T11:30:00Z", judgeTarget("", now))

	// An explicit flag wins.
	assert.Equal(t, "2025-01-15T00:00:00Z", judgeTarget("2025-01-15T00:00:00Z", now))
}
