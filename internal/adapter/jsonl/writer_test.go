package jsonl

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barometer-digital/skyscraper/internal/domain"
)

func readLines(t *testing.T, path string) []domain.Post {
	t.Helper()
	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	var posts []domain.Post
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var post domain.Post
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &post))
		posts = append(posts, post)
	}
	require.NoError(t, scanner.Err())
	return posts
}

func TestWriter_AppendsOneLinePerRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "posts.jsonl")
	writer, err := NewWriter(path)
	require.NoError(t, err)
	defer writer.Close()

	posts := []domain.Post{
		{URI: "at://did:plc:a/app.bsky.feed.post/1", Text: "first", Author: "alice.bsky.social"},
		{URI: "at://did:plc:b/app.bsky.feed.post/2", Text: "second", Author: "bob.bsky.social", HasImages: true},
		{URI: "at://did:plc:a/app.bsky.feed.post/1", Text: "first, edited", Author: "alice.bsky.social"},
	}
	for _, post := range posts {
		require.NoError(t, writer.Append(context.Background(), post))
	}

	got := readLines(t, path)
	require.Len(t, got, 3)
	assert.Equal(t, posts, got)
}

func TestWriter_AppendsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "posts.jsonl")

	first, err := NewWriter(path)
	require.NoError(t, err)
	require.NoError(t, first.Append(context.Background(), domain.Post{URI: "at://a/p/1", Text: "before"}))
	require.NoError(t, first.Close())

	second, err := NewWriter(path)
	require.NoError(t, err)
	require.NoError(t, second.Append(context.Background(), domain.Post{URI: "at://a/p/2", Text: "after"}))
	require.NoError(t, second.Close())

	got := readLines(t, path)
	require.Len(t, got, 2)
	assert.Equal(t, "before", got[0].Text)
	assert.Equal(t, "after", got[1].Text)
}

func TestWriter_UnwritableDirectory(t *testing.T) {
	_, err := NewWriter(filepath.Join(t.TempDir(), "missing", "posts.jsonl"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open output file")
}

func TestWriter_Path(t *testing.T) {
	path := filepath.Join(t.TempDir(), "posts.jsonl")
	writer, err := NewWriter(path)
	require.NoError(t, err)
	defer writer.Close()

	assert.Equal(t, path, writer.Path())
}
