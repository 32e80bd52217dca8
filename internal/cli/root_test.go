package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "crescent", cmd.Use)
	assert.Contains(t, cmd.Long, "local-first")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := [][]string{
		{"status"}, {"calendar"}, {"progress"},
		{"family", "setup"}, {"family", "confirm-start"}, {"family", "update"}, {"family", "show"},
		{"profile", "add"}, {"profile", "list"}, {"profile", "update"},
		{"reward", "add"}, {"fast", "log"}, {"suhoor", "log"},
		{"message", "send"}, {"memory", "add"}, {"capsule", "add"},
		{"record", "list"}, {"record", "edit"},
		{"pending", "list"}, {"pending", "retry"}, {"pending", "discard"},
		{"sync"}, {"run"}, {"scenario"},
	}

	for _, path := range commands {
		name := path[len(path)-1]
		t.Run(name, func(t *testing.T) {
			subCmd, _, err := cmd.Find(path)
			require.NoError(t, err, "command %v should exist", path)
			require.NotNil(t, subCmd)
			assert.Equal(t, name, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "c", configFlag.Shorthand)

	envFlag := cmd.PersistentFlags().Lookup("env-file")
	require.NotNil(t, envFlag)
	assert.Equal(t, ".env", envFlag.DefValue)
}

func TestFamilySetupFlags(t *testing.T) {
	cmd := NewRootCommand()
	setup, _, err := cmd.Find([]string{"family", "setup"})
	require.NoError(t, err)

	for _, name := range []string{"name", "start", "timezone", "pre-dawn", "sunset", "owner"} {
		assert.NotNil(t, setup.Flags().Lookup(name), "flag %s", name)
	}
	assert.Equal(t, "UTC", setup.Flags().Lookup("timezone").DefValue)
}

func TestRecordCommandsTakeDate(t *testing.T) {
	cmd := NewRootCommand()
	for _, path := range [][]string{
		{"reward", "add"}, {"fast", "log"}, {"suhoor", "log"},
		{"message", "send"}, {"memory", "add"}, {"capsule", "add"},
	} {
		sub, _, err := cmd.Find(path)
		require.NoError(t, err)
		f := sub.Flags().Lookup("date")
		require.NotNil(t, f, "%v", path)
		assert.Equal(t, "", f.DefValue)
	}
}

func TestRunCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	runCmd, _, err := cmd.Find([]string{"run"})
	require.NoError(t, err)

	refresh := runCmd.Flags().Lookup("refresh")
	require.NotNil(t, refresh)
	assert.Equal(t, "0s", refresh.DefValue)
}
