// backupd - Database and File Backup Service
// Copyright 2026 The webeenthere Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Kurisu21/webeenthere-sub006

// Package archive streams directory trees and files into a single tar
// archive, optionally compressed with gzip or zstd, and extracts such
// archives back onto disk.
//
// # Building
//
// Builder.Build writes every regular file under each Source. Nothing is
// buffered beyond the compressor window, so archive size is bounded by disk
// rather than memory. A Source whose path does not exist is skipped and
// logged; the build still succeeds.
//
// Builder.BuildIncremental only writes regular files whose modification time
// is at or after the watermark. When no file qualifies the archive holds a
// single MarkerName entry reading "no changes since <watermark>", so an
// incremental run with nothing to do still yields a valid, restorable
// artifact.
//
// # Extraction
//
// Unpack refuses any entry that would land outside the destination:
// absolute names, names with ".." elements, symlinks and hard links. It also
// rejects entries larger than Builder.MaxEntrySize. Compression is detected
// from the stream's magic bytes, not the file extension, so decrypted temp
// files unpack the same way as the originals.
package archive
