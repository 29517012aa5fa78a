// backupd - Database and File Backup Service
// Copyright 2026 The webeenthere Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Kurisu21/webeenthere-sub006

package archive

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Algorithm selects the compression applied around the tar stream.
type Algorithm string

const (
	Gzip Algorithm = "gzip"
	Zstd Algorithm = "zstd"
	None Algorithm = "none"
)

// MarkerName is the entry written into an incremental archive that found
// nothing to include.
const MarkerName = "NO_CHANGES"

// DefaultMaxEntrySize caps a single extracted entry (decompression bomb guard).
const DefaultMaxEntrySize int64 = 4 << 30

var (
	ErrUnsafePath       = errors.New("archive entry escapes destination")
	ErrEntryTooLarge    = errors.New("archive entry exceeds size limit")
	ErrUnknownAlgorithm = errors.New("unknown compression algorithm")
)

// Source is one directory or file to include in an archive.
type Source struct {
	// Path is the location on disk.
	Path string
	// Name is the prefix (for a directory) or entry name (for a file) inside
	// the archive, using forward slashes.
	Name string
	// Always includes the source in incremental archives regardless of its
	// modification time.
	Always bool
}

// Result describes a finished archive.
type Result struct {
	Size       int64    `json:"size"`
	EntryCount int      `json:"entryCount"`
	HasChanges bool     `json:"hasChanges"`
	Skipped    []string `json:"skipped,omitempty"`
}

// Builder writes and reads archives with a fixed compression setting.
// The zero value writes gzip at the default level.
type Builder struct {
	Algorithm    Algorithm
	Level        int
	MaxEntrySize int64
}

// ParseAlgorithm converts a configuration string to an Algorithm.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch Algorithm(s) {
	case Gzip, "":
		return Gzip, nil
	case Zstd:
		return Zstd, nil
	case None:
		return None, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAlgorithm, s)
	}
}

func (b *Builder) algorithm() Algorithm {
	if b.Algorithm == "" {
		return Gzip
	}
	return b.Algorithm
}

func (b *Builder) maxEntrySize() int64 {
	if b.MaxEntrySize <= 0 {
		return DefaultMaxEntrySize
	}
	return b.MaxEntrySize
}

// Extension returns the file suffix matching the builder's algorithm.
func (b *Builder) Extension() string {
	switch b.algorithm() {
	case Zstd:
		return ".tar.zst"
	case None:
		return ".tar"
	default:
		return ".tar.gz"
	}
}

// compressor wraps w according to the configured algorithm. The returned
// closer flushes the compressed stream but does not close w.
func (b *Builder) compressor(w io.Writer) (io.Writer, io.Closer, error) {
	switch b.algorithm() {
	case Gzip:
		level := b.Level
		if level == 0 {
			level = gzip.DefaultCompression
		}
		gz, err := gzip.NewWriterLevel(w, level)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create gzip writer: %w", err)
		}
		return gz, gz, nil
	case Zstd:
		opts := []zstd.EOption{}
		if b.Level != 0 {
			opts = append(opts, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(b.Level)))
		}
		zw, err := zstd.NewWriter(w, opts...)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create zstd writer: %w", err)
		}
		return zw, zw, nil
	case None:
		return w, nopCloser{}, nil
	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, b.Algorithm)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// markerHeader builds the header of the no-changes entry.
func markerHeader(size int, now time.Time) *tar.Header {
	return &tar.Header{
		Name:     MarkerName,
		Typeflag: tar.TypeReg,
		Size:     int64(size),
		Mode:     0o640,
		ModTime:  now,
	}
}

// MarkerText is the body of the no-changes entry for a watermark.
func MarkerText(since time.Time) string {
	return fmt.Sprintf("no changes since %s\n", since.UTC().Format(time.RFC3339))
}
