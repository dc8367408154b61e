package cliutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStringIncludesAllFields(t *testing.T) {
	oldVersion, oldCommit, oldDate := Version, Commit, Date
	Version, Commit, Date = "1.2.3", "abc123", "2026-08-06"
	defer func() { Version, Commit, Date = oldVersion, oldCommit, oldDate }()

	s := String()
	assert.Contains(t, s, "1.2.3")
	assert.Contains(t, s, "abc123")
	assert.Contains(t, s, "2026-08-06")
}

func TestBannerIncludesBinaryName(t *testing.T) {
	b := Banner("telemetryhubd")
	assert.Contains(t, b, "telemetryhubd")
}
