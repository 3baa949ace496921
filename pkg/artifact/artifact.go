// Copyright (c) 2021 - for information on the respective copyright owner
// see the NOTICE file and/or the repository https://github.com/aiarena/sc2-match-controller.
//
// SPDX-License-Identifier: Apache-2.0

// Package artifact packages a match's result artifacts (replay, bot
// logs, bot data directories) into a single zip archive for upload to
// the cache service (spec §4.7, SPEC_FULL.md §11). It registers
// klauspost/compress/flate as the archive's Deflate implementation the
// way the rest of this module prefers the klauspost drop-in replacements
// over compress/* for anything touching match-volume data.
package artifact

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/flate"
)

func init() {
	zip.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, flate.DefaultCompression)
	})
	zip.RegisterDecompressor(zip.Deflate, func(r io.Reader) io.ReadCloser {
		return flate.NewReader(r)
	})
}

// Entry is one file to place in the archive, named relative to the
// archive root.
type Entry struct {
	ArchiveName string
	SourcePath  string
}

// BuildError wraps a failure packaging one entry.
type BuildError struct {
	Entry string
	Cause error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("packaging %s: %v", e.Entry, e.Cause)
}
func (e *BuildError) Unwrap() error { return e.Cause }

// Build writes entries into a new zip archive at destPath, skipping any
// entry whose source file does not exist (bots that never wrote a log
// or data directory are common and not an error).
func Build(destPath string, entries []Entry) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return &BuildError{Entry: destPath, Cause: err}
	}
	out, err := os.Create(destPath)
	if err != nil {
		return &BuildError{Entry: destPath, Cause: err}
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	for _, e := range entries {
		if err := addEntry(zw, e); err != nil {
			zw.Close()
			return err
		}
	}
	return zw.Close()
}

func addEntry(zw *zip.Writer, e Entry) error {
	src, err := os.Open(e.SourcePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return &BuildError{Entry: e.ArchiveName, Cause: err}
	}
	defer src.Close()

	w, err := zw.Create(e.ArchiveName)
	if err != nil {
		return &BuildError{Entry: e.ArchiveName, Cause: err}
	}
	if _, err := io.Copy(w, src); err != nil {
		return &BuildError{Entry: e.ArchiveName, Cause: err}
	}
	return nil
}

// BuildDir recursively adds every regular file under dir to the
// archive, keeeping paths relative to dir and prefixed with
// archivePrefix. Used for bot data directories, whose contents are not
// enumerable ahead of time.
func BuildDir(zw *zip.Writer, dir, archivePrefix string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		return addEntry(zw, Entry{ArchiveName: filepath.Join(archivePrefix, rel), SourcePath: path})
	})
}
