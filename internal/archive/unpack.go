// backupd - Database and File Backup Service
// Copyright 2026 The webeenthere Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Kurisu21/webeenthere-sub006

package archive

import (
	"archive/tar"
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// UnpackResult reports what Unpack wrote.
type UnpackResult struct {
	Files   int      `json:"files"`
	Dirs    int      `json:"dirs"`
	Entries []string `json:"entries"`
}

// EntryFunc receives each archive entry in order. The reader is only valid
// until the function returns.
type EntryFunc func(hdr *tar.Header, r io.Reader) error

// Walk calls fn for every entry of the archive at archivePath.
//
//nolint:gosec // G304: archivePath is an artifact path resolved by the caller
func (b *Builder) Walk(ctx context.Context, archivePath string, fn EntryFunc) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only

	tr, closer, err := openTarReader(f)
	if err != nil {
		return err
	}
	defer closer.Close() //nolint:errcheck // decompressor release

	for {
		if err := ctx.Err(); err != nil {
			return context.Cause(ctx)
		}
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read tar entry: %w", err)
		}
		if err := fn(hdr, tr); err != nil {
			return err
		}
	}
}

// openTarReader sniffs the compression from the first bytes of r.
func openTarReader(r io.Reader) (*tar.Reader, io.Closer, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(4)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, nil, fmt.Errorf("failed to read archive header: %w", err)
	}

	switch {
	case bytes.HasPrefix(head, gzipMagic):
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		return tar.NewReader(gz), gz, nil
	case bytes.HasPrefix(head, zstdMagic):
		zr, err := zstd.NewReader(br)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create zstd reader: %w", err)
		}
		return tar.NewReader(zr), zstdCloser{zr}, nil
	default:
		return tar.NewReader(br), nopCloser{}, nil
	}
}

type zstdCloser struct{ d *zstd.Decoder }

func (z zstdCloser) Close() error {
	z.d.Close()
	return nil
}

// Unpack extracts the archive at archivePath into dest, which is created if
// needed. Every entry is checked before anything is written for it.
func (b *Builder) Unpack(ctx context.Context, archivePath, dest string) (*UnpackResult, error) {
	if err := os.MkdirAll(dest, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create destination: %w", err)
	}

	limit := b.maxEntrySize()
	result := &UnpackResult{}

	err := b.Walk(ctx, archivePath, func(hdr *tar.Header, r io.Reader) error {
		destPath, err := SafeJoin(dest, hdr.Name)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(destPath, 0o750); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", hdr.Name, err)
			}
			result.Dirs++
			return nil
		case tar.TypeReg:
			if hdr.Size > limit {
				return fmt.Errorf("%w: %s is %d bytes (max %d)", ErrEntryTooLarge, hdr.Name, hdr.Size, limit)
			}
			if err := os.MkdirAll(filepath.Dir(destPath), 0o750); err != nil {
				return fmt.Errorf("failed to create directory for %s: %w", hdr.Name, err)
			}
			if err := extractFile(r, destPath, hdr.Size, hdr.FileInfo().Mode().Perm()); err != nil {
				return fmt.Errorf("failed to extract %s: %w", hdr.Name, err)
			}
			result.Files++
			result.Entries = append(result.Entries, strings.TrimPrefix(path.Clean(hdr.Name), "./"))
			return nil
		default:
			return fmt.Errorf("%w: %s has unsupported type %q", ErrUnsafePath, hdr.Name, string(hdr.Typeflag))
		}
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SafeJoin resolves an archive entry name under dir, rejecting names that are
// absolute or climb out of dir.
func SafeJoin(dir, name string) (string, error) {
	if name == "" || path.IsAbs(name) || filepath.IsAbs(name) || filepath.VolumeName(name) != "" {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, name)
	}
	for _, part := range strings.Split(strings.ReplaceAll(name, `\`, "/"), "/") {
		if part == ".." {
			return "", fmt.Errorf("%w: %q", ErrUnsafePath, name)
		}
	}

	clean := filepath.Clean(dir)
	destPath := filepath.Join(clean, filepath.FromSlash(name))
	if destPath != clean && !strings.HasPrefix(destPath, clean+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, name)
	}
	return destPath, nil
}

//nolint:gosec // G110: size is bounded by the caller, G304: destPath is validated
func extractFile(r io.Reader, destPath string, size int64, perm os.FileMode) error {
	if perm == 0 {
		perm = 0o640
	}
	out, err := os.OpenFile(destPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
	if err != nil {
		return err
	}

	n, err := io.Copy(out, io.LimitReader(r, size))
	closeErr := out.Close()
	switch {
	case err != nil:
		os.Remove(destPath) //nolint:errcheck // Best effort cleanup on error
		return err
	case closeErr != nil:
		os.Remove(destPath) //nolint:errcheck // Best effort cleanup on error
		return closeErr
	case n != size:
		os.Remove(destPath) //nolint:errcheck // Best effort cleanup on error
		return fmt.Errorf("short entry: wrote %d of %d bytes", n, size)
	}
	return nil
}
