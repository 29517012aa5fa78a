// backupd - Database and File Backup Service
// Copyright 2026 The webeenthere Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Kurisu21/webeenthere-sub006

package archive

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/Kurisu21/webeenthere-sub006/internal/logging"
)

// archiveWriters holds the writer stack of one archive being built.
type archiveWriters struct {
	file      *os.File
	tarWriter *tar.Writer
	closers   []io.Closer
}

// Close closes all writers in reverse order, returning the first error encountered.
func (aw *archiveWriters) Close() error {
	var firstErr error
	for i := len(aw.closers) - 1; i >= 0; i-- {
		if err := aw.closers[i].Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

//nolint:gosec // G304: outPath is built by the backup manager
func (b *Builder) setupWriters(outPath string) (*archiveWriters, error) {
	outFile, err := os.OpenFile(outPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		return nil, fmt.Errorf("failed to create archive file: %w", err)
	}

	aw := &archiveWriters{file: outFile, closers: []io.Closer{syncCloser{outFile}}}

	dest, closer, err := b.compressor(outFile)
	if err != nil {
		outFile.Close()    //nolint:errcheck // Best effort cleanup on error
		os.Remove(outPath) //nolint:errcheck // Best effort cleanup on error
		return nil, err
	}
	aw.closers = append(aw.closers, closer)

	aw.tarWriter = tar.NewWriter(dest)
	aw.closers = append(aw.closers, aw.tarWriter)
	return aw, nil
}

// syncCloser flushes the file to stable storage before closing it.
type syncCloser struct{ f *os.File }

func (s syncCloser) Close() error {
	if err := s.f.Sync(); err != nil {
		s.f.Close() //nolint:errcheck // Best effort cleanup on error
		return err
	}
	return s.f.Close()
}

// entryFilter decides whether a regular file is written.
type entryFilter func(src Source, info fs.FileInfo) bool

// Build writes every file under sources into a new archive at outPath.
func (b *Builder) Build(ctx context.Context, outPath string, sources []Source) (*Result, error) {
	return b.build(ctx, outPath, sources, true, nil, time.Time{})
}

// BuildIncremental writes only the files modified at or after since. Sources
// marked Always are written in full. An archive with nothing to include
// receives the MarkerName entry and HasChanges is false.
func (b *Builder) BuildIncremental(ctx context.Context, outPath string, sources []Source, since time.Time) (*Result, error) {
	filter := func(src Source, info fs.FileInfo) bool {
		return src.Always || !info.ModTime().Before(since)
	}
	return b.build(ctx, outPath, sources, false, filter, since)
}

func (b *Builder) build(ctx context.Context, outPath string, sources []Source, withDirs bool, filter entryFilter, since time.Time) (result *Result, err error) {
	aw, err := b.setupWriters(outPath)
	if err != nil {
		return nil, err
	}
	defer func() {
		closeErr := aw.Close()
		if err == nil && closeErr != nil {
			err = fmt.Errorf("failed to finalize archive: %w", closeErr)
		}
		if err != nil {
			os.Remove(outPath) //nolint:errcheck // Best effort cleanup on error
			result = nil
			return
		}
		info, statErr := os.Stat(outPath)
		if statErr != nil {
			err = fmt.Errorf("failed to stat archive: %w", statErr)
			result = nil
			return
		}
		result.Size = info.Size()
	}()

	result = &Result{}
	for _, src := range sources {
		if err := b.addSource(ctx, aw.tarWriter, src, withDirs, filter, result); err != nil {
			return nil, err
		}
	}

	result.HasChanges = result.EntryCount > 0
	if filter != nil && !result.HasChanges {
		body := MarkerText(since)
		if err := aw.tarWriter.WriteHeader(markerHeader(len(body), time.Now())); err != nil {
			return nil, fmt.Errorf("failed to write marker header: %w", err)
		}
		if _, err := io.WriteString(aw.tarWriter, body); err != nil {
			return nil, fmt.Errorf("failed to write marker: %w", err)
		}
		logging.Ctx(ctx).Info().Time("since", since).Msg("No files changed since watermark, wrote marker entry")
	}

	return result, nil
}

func (b *Builder) addSource(ctx context.Context, tw *tar.Writer, src Source, withDirs bool, filter entryFilter, result *Result) error {
	info, err := os.Stat(src.Path)
	if errors.Is(err, fs.ErrNotExist) {
		logging.Ctx(ctx).Warn().Str("path", src.Path).Str("name", src.Name).Msg("Archive source missing, skipped")
		result.Skipped = append(result.Skipped, src.Path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", src.Path, err)
	}

	if !info.IsDir() {
		if filter != nil && !filter(src, info) {
			return nil
		}
		if err := addFile(tw, src.Path, src.Name, info); err != nil {
			return err
		}
		result.EntryCount++
		return nil
	}

	root := filepath.Clean(src.Path)
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return fmt.Errorf("failed to walk %s: %w", p, walkErr)
		}
		if err := ctx.Err(); err != nil {
			return context.Cause(ctx)
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		name := path.Join(src.Name, filepath.ToSlash(rel))

		fi, err := d.Info()
		if err != nil {
			return fmt.Errorf("failed to stat %s: %w", p, err)
		}

		switch {
		case d.IsDir():
			if !withDirs || rel == "." && src.Name == "" {
				return nil
			}
			return addDir(tw, name, fi)
		case fi.Mode().IsRegular():
			if filter != nil && !filter(src, fi) {
				return nil
			}
			if err := addFile(tw, p, name, fi); err != nil {
				return err
			}
			result.EntryCount++
			return nil
		default:
			logging.Ctx(ctx).Debug().Str("path", p).Str("mode", fi.Mode().String()).Msg("Skipping non-regular file")
			return nil
		}
	})
}

func addDir(tw *tar.Writer, name string, info fs.FileInfo) error {
	header, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return fmt.Errorf("failed to create tar header for %s: %w", name, err)
	}
	header.Name = strings.TrimSuffix(name, "/") + "/"
	if err := tw.WriteHeader(header); err != nil {
		return fmt.Errorf("failed to write tar header for %s: %w", name, err)
	}
	return nil
}

// addFile copies one regular file into the archive.
//
//nolint:gosec // G304: srcPath comes from a configured source tree
func addFile(tw *tar.Writer, srcPath, name string, info fs.FileInfo) error {
	file, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", srcPath, err)
	}
	defer file.Close() //nolint:errcheck // read-only

	header, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return fmt.Errorf("failed to create tar header for %s: %w", srcPath, err)
	}
	header.Name = name

	if err := tw.WriteHeader(header); err != nil {
		return fmt.Errorf("failed to write tar header for %s: %w", srcPath, err)
	}
	// The header size was taken from the stat; a file growing underneath us
	// must not overrun it.
	if _, err := io.Copy(tw, io.LimitReader(file, header.Size)); err != nil {
		return fmt.Errorf("failed to copy %s to archive: %w", srcPath, err)
	}
	return nil
}
