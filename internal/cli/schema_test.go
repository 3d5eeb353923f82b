package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRoot() *cobra.Command {
	root := &cobra.Command{Use: "kbsearchd", Short: "daemon"}
	AddHelpJSONFlag(root)

	serve := &cobra.Command{Use: "serve", Short: "Start the API server", Run: func(*cobra.Command, []string) {}}
	serve.Flags().StringP("port", "p", "", "Port to listen on")
	serve.Flags().Bool("no-migrate", false, "Skip migrations")
	serve.Flags().String("dsn", "", "Database URL")
	_ = serve.MarkFlagRequired("dsn")

	reindex := &cobra.Command{Use: "reindex", Short: "Embed missing items", Run: func(*cobra.Command, []string) {}}
	reindex.Flags().IntP("batch", "b", 50, "Batch size")

	hidden := &cobra.Command{Use: "internal", Hidden: true, Run: func(*cobra.Command, []string) {}}

	root.AddCommand(serve, reindex, hidden)
	return root
}

func TestGenerateSchema(t *testing.T) {
	schema := GenerateSchema(testRoot())

	assert.Equal(t, "kbsearchd", schema.Name)
	assert.Equal(t, "daemon", schema.Description)
	require.Len(t, schema.Subcommands, 2)

	byName := map[string]CommandSchema{}
	for _, sub := range schema.Subcommands {
		byName[sub.Name] = sub
	}
	assert.NotContains(t, byName, "internal")

	serve := byName["serve"]
	require.Len(t, serve.Flags, 3)
	flags := map[string]FlagSchema{}
	for _, f := range serve.Flags {
		flags[f.Name] = f
	}
	assert.Equal(t, "p", flags["port"].Shorthand)
	assert.Equal(t, "string", flags["port"].Type)
	assert.Equal(t, "bool", flags["no-migrate"].Type)
	assert.Equal(t, "false", flags["no-migrate"].Default)
	assert.False(t, flags["port"].Required)
	assert.True(t, flags["dsn"].Required)

	batch := byName["reindex"].Flags
	require.Len(t, batch, 1)
	assert.Equal(t, "int", batch[0].Type)
	assert.Equal(t, "50", batch[0].Default)
}

func TestGenerateSchema_SkipsHelpJSONFlag(t *testing.T) {
	root := testRoot()
	for _, f := range GenerateSchema(root).Flags {
		assert.NotEqual(t, "help-json", f.Name)
	}
}

func TestFindTargetCommand(t *testing.T) {
	root := testRoot()

	assert.Equal(t, root, findTargetCommand(root, nil))
	assert.Equal(t, "reindex", findTargetCommand(root, []string{"reindex"}).Name())
	assert.Equal(t, "serve", findTargetCommand(root, []string{"serve", "extra"}).Name())
	assert.Equal(t, root, findTargetCommand(root, []string{"unknown"}))
}

func TestHelpJSON(t *testing.T) {
	root := testRoot()

	var buf bytes.Buffer
	handled, err := HelpJSON(root, []string{"reindex", "--help-json"}, &buf)
	require.NoError(t, err)
	require.True(t, handled)

	var schema CommandSchema
	require.NoError(t, json.Unmarshal(buf.Bytes(), &schema))
	assert.Equal(t, "reindex", schema.Name)

	buf.Reset()
	handled, err = HelpJSON(root, []string{"serve", "--port", "9000"}, &buf)
	require.NoError(t, err)
	assert.False(t, handled)
	assert.Zero(t, buf.Len())
}
