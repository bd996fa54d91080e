package errlog

import (
	"bytes"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFile_TruncatesWhenFull(t *testing.T) {
	f, err := Open(filepath.Join(t.TempDir(), "logs", "errors.log"), 32)
	require.NoError(t, err)
	defer f.Close()

	_, err = f.Write([]byte("first line 0123456789\n"))
	require.NoError(t, err)
	_, err = f.Write([]byte("second line 012345\n"))
	require.NoError(t, err)

	b, err := f.Read()
	require.NoError(t, err)
	assert.Equal(t, "second line 012345\n", string(b))
}

func TestFile_ClipsOversizedRecord(t *testing.T) {
	f, err := Open(filepath.Join(t.TempDir(), "errors.log"), 16)
	require.NoError(t, err)
	defer f.Close()

	_, err = f.Write([]byte("short\n"))
	require.NoError(t, err)
	rec := []byte(strings.Repeat("x", 40) + "\n")
	n, err := f.Write(rec)
	require.NoError(t, err)
	assert.Equal(t, len(rec), n)

	b, err := f.Read()
	require.NoError(t, err)
	assert.Len(t, b, 16)
	assert.Equal(t, strings.Repeat("x", 15)+"\n", string(b))
}

func TestFile_Clear(t *testing.T) {
	f, err := Open(filepath.Join(t.TempDir(), "errors.log"), 0)
	require.NoError(t, err)
	defer f.Close()

	_, _ = f.Write([]byte("boom\n"))
	require.NoError(t, f.Clear())
	b, err := f.Read()
	require.NoError(t, err)
	assert.Empty(t, b)

	_, _ = f.Write([]byte("again\n"))
	b, _ = f.Read()
	assert.Equal(t, "again\n", string(b))
}

func TestTee_MirrorsErrorsOnly(t *testing.T) {
	var out, file bytes.Buffer
	primary := slog.NewTextHandler(&out, &slog.HandlerOptions{Level: slog.LevelInfo})
	secondary := slog.NewJSONHandler(&file, nil)
	log := slog.New(NewTee(primary, secondary, slog.LevelError)).With("service", "staff-api")

	log.Info("poll ok")
	log.Error("order fetch failed", "error", "timeout")

	assert.Contains(t, out.String(), "poll ok")
	assert.Contains(t, out.String(), "order fetch failed")
	assert.NotContains(t, file.String(), "poll ok")
	assert.Contains(t, file.String(), `"msg":"order fetch failed"`)
	assert.Equal(t, 1, strings.Count(file.String(), "\n"))
	assert.Contains(t, file.String(), `"service":"staff-api"`)
}
