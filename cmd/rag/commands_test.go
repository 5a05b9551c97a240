package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragqa/internal/ragerr"
	"ragqa/internal/store/sqlite"
)

// writeConfig points the CLI at a throwaway sqlite database and an API key
// variable that is never set.
func writeConfig(t *testing.T) (cfgPath, dbPath string) {
	t.Helper()
	dir := t.TempDir()
	dbPath = filepath.Join(dir, "rag.db")
	cfgPath = filepath.Join(dir, "config.yaml")
	t.Setenv("RAG_DATA_PATH", "")
	t.Setenv("RAG_STORAGE_BACKEND", "")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
provider:
  api_key_env: RAG_TEST_UNSET_KEY
storage:
  backend: sqlite
  path: `+dbPath+`
`), 0o600))
	return cfgPath, dbPath
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(append(args, "--env-file", filepath.Join(t.TempDir(), "none.env")))
	err := root.Execute()
	return buf.String(), err
}

func TestRootCommand_Help(t *testing.T) {
	out, err := run(t, "--help")
	require.NoError(t, err)
	for _, sub := range []string{"ingest", "ask", "chat", "serve", "questions", "purge", "--config", "--verbose"} {
		assert.Contains(t, out, sub)
	}
}

func TestAsk_RequiresAPIKey(t *testing.T) {
	cfg, _ := writeConfig(t)
	_, err := run(t, "ask", "--config", cfg, "hello?")
	require.Error(t, err)
	assert.True(t, ragerr.IsProvider(err))
	assert.Contains(t, err.Error(), "RAG_TEST_UNSET_KEY")
}

func TestMissingConfigFile(t *testing.T) {
	_, err := run(t, "questions", "list", "--config", filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, ragerr.HasCode(err, ragerr.CodeConfigReadFailure))
}

func TestQuestionsLifecycle(t *testing.T) {
	cfg, dbPath := writeConfig(t)

	out, err := run(t, "questions", "list", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "no questions yet")

	ctx := context.Background()
	store, err := sqlite.NewStore(dbPath)
	require.NoError(t, err)
	rec, err := store.AppendRecord(ctx, domainRecord())
	require.NoError(t, err)
	qid, err := store.InsertQuestion(ctx, "What is RAG?", "Retrieval augmented generation.")
	require.NoError(t, err)
	require.NoError(t, store.InsertLinks(ctx, qid, []int64{rec}))
	require.NoError(t, store.Close())

	out, err = run(t, "questions", "list", "--sources", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "What is RAG?")
	assert.Contains(t, out, "[1] record")

	_, err = run(t, "questions", "delete", "abc", "--config", cfg)
	assert.True(t, ragerr.IsInvalidInput(err))

	out, err = run(t, "questions", "delete", "1", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "question 1 deleted")

	_, err = run(t, "questions", "delete", "1", "--config", cfg)
	assert.True(t, ragerr.IsNotFound(err))

	out, err = run(t, "questions", "clear", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "all questions deleted")
}

func TestPurge(t *testing.T) {
	cfg, dbPath := writeConfig(t)

	_, err := run(t, "purge", "--config", cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--yes")

	store, err := sqlite.NewStore(dbPath)
	require.NoError(t, err)
	_, err = store.AppendRecord(context.Background(), domainRecord())
	require.NoError(t, err)
	require.NoError(t, store.Close())

	out, err := run(t, "purge", "--yes", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "purged 1 records")
}
