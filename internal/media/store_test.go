package media

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"travelmate/internal/domain"
)

// 1x1 transparent PNG
var pngPixel = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0d, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

func TestLocalStore_Save(t *testing.T) {
	dir := t.TempDir()
	s := NewLocalStore(dir, "/api/uploads/", 1024)
	ctx := context.Background()

	t.Run("image", func(t *testing.T) {
		att, err := s.Save(ctx, bytes.NewReader(pngPixel), "pixel.bin")
		require.NoError(t, err)
		assert.Equal(t, "image", att.Kind)
		assert.True(t, strings.HasPrefix(att.URL, "/api/uploads/"))
		assert.True(t, strings.HasSuffix(att.URL, ".png"))

		path, err := s.Path(filepath.Base(att.URL))
		require.NoError(t, err)
		got, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, pngPixel, got)
	})

	t.Run("plain text is a file", func(t *testing.T) {
		att, err := s.Save(ctx, strings.NewReader("itinerary notes"), "notes.txt")
		require.NoError(t, err)
		assert.Equal(t, "file", att.Kind)
	})

	t.Run("too large", func(t *testing.T) {
		_, err := s.Save(ctx, bytes.NewReader(make([]byte, 1025)), "big.bin")
		assert.ErrorIs(t, err, domain.ErrValidation)

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Len(t, entries, 2)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := s.Save(ctx, strings.NewReader(""), "empty.txt")
		assert.ErrorIs(t, err, domain.ErrValidation)
	})
}

func TestLocalStore_Path(t *testing.T) {
	s := NewLocalStore(t.TempDir(), "/api/uploads", 1024)

	_, err := s.Path("../etc/passwd")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = s.Path(".env")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = s.Path("missing.png")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLocalStore_Remove(t *testing.T) {
	s := NewLocalStore(t.TempDir(), "/api/uploads", 1024)

	att, err := s.Save(context.Background(), bytes.NewReader(pngPixel), "pixel.png")
	require.NoError(t, err)
	require.NoError(t, s.Remove(att))

	_, err = s.Path(filepath.Base(att.URL))
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, s.Remove(att), domain.ErrNotFound)

	err = s.Remove(&domain.Attachment{URL: "https://cdn.example.com/x.png", Kind: "image"})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, "image", KindOf("image/png"))
	assert.Equal(t, "video", KindOf("video/mp4"))
	assert.Equal(t, "audio", KindOf("audio/mpeg"))
	assert.Equal(t, "file", KindOf("application/pdf"))
}
