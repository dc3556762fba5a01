package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommandHasSubcommands(t *testing.T) {
	root := newRootCommand()

	for _, name := range []string{"serve", "migrate"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, cmd.Name())
	}
}

func TestMigrateRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	root := newRootCommand()
	root.SetArgs([]string{"migrate"})
	err := root.Execute()
	assert.ErrorContains(t, err, "DATABASE_URL")
}

func TestServeFailsWithoutConfig(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("GEMINI_API_KEY", "")

	root := newRootCommand()
	root.SetArgs([]string{"serve"})
	err := root.Execute()
	assert.ErrorContains(t, err, "DATABASE_URL")
}
