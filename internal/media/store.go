// Package media stores message attachments on local disk and hands back
// references to them. Message rows only ever hold the reference.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"travelmate/internal/domain"
)

const sniffLen = 512

// LocalStore writes uploads under dir and serves them back by file name.
type LocalStore struct {
	dir       string
	urlPrefix string
	maxBytes  int64
}

func NewLocalStore(dir, urlPrefix string, maxBytes int64) *LocalStore {
	return &LocalStore{
		dir:       dir,
		urlPrefix: strings.TrimRight(urlPrefix, "/"),
		maxBytes:  maxBytes,
	}
}

// KindOf maps a detected MIME type to an attachment kind.
func KindOf(mime string) string {
	switch {
	case strings.HasPrefix(mime, "image/"):
		return "image"
	case strings.HasPrefix(mime, "video/"):
		return "video"
	case strings.HasPrefix(mime, "audio/"):
		return "audio"
	default:
		return "file"
	}
}

// Save copies r to a fresh file and returns the attachment reference.
// Content over the configured size limit is rejected with ErrValidation.
func (s *LocalStore) Save(ctx context.Context, r io.Reader, originalName string) (*domain.Attachment, error) {
	sniff := make([]byte, sniffLen)
	n, err := io.ReadFull(r, sniff)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read attachment: %w", err)
	}
	sniff = sniff[:n]
	if n == 0 {
		return nil, fmt.Errorf("%w: attachment is empty", domain.ErrValidation)
	}

	mt := mimetype.Detect(sniff)
	ext := mt.Extension()
	if ext == "" {
		ext = strings.ToLower(filepath.Ext(originalName))
	}
	name := uuid.NewString() + ext
	path := filepath.Join(s.dir, name)

	out, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create attachment: %w", err)
	}

	body := io.MultiReader(bytes.NewReader(sniff), r)
	written, err := io.Copy(out, io.LimitReader(body, s.maxBytes+1))
	closeErr := out.Close()
	switch {
	case err != nil:
		os.Remove(path)
		return nil, fmt.Errorf("write attachment: %w", err)
	case closeErr != nil:
		os.Remove(path)
		return nil, fmt.Errorf("write attachment: %w", closeErr)
	case written > s.maxBytes:
		os.Remove(path)
		return nil, fmt.Errorf("%w: attachment exceeds %d bytes", domain.ErrValidation, s.maxBytes)
	}
	if err := ctx.Err(); err != nil {
		os.Remove(path)
		return nil, err
	}

	return &domain.Attachment{
		URL:  s.urlPrefix + "/" + name,
		Kind: KindOf(mt.String()),
	}, nil
}

// Path resolves a stored file name to its location on disk.
func (s *LocalStore) Path(name string) (string, error) {
	if name == "" || filepath.Base(name) != name || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("%w: invalid file name", domain.ErrValidation)
	}
	path := filepath.Join(s.dir, name)
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return "", fmt.Errorf("attachment %s: %w", name, domain.ErrNotFound)
	}
	return path, nil
}

// Remove deletes the file behind an attachment this store produced.
func (s *LocalStore) Remove(att *domain.Attachment) error {
	name := path.Base(att.URL)
	if att.URL != s.urlPrefix+"/"+name {
		return fmt.Errorf("%w: attachment %s is not stored here", domain.ErrValidation, att.URL)
	}
	p, err := s.Path(name)
	if err != nil {
		return err
	}
	return os.Remove(p)
}
