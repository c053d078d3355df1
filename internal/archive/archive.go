// Package archive turns a finished day folder into a single zip file and,
// when the result is too large to mail in one piece, splits it into
// bounded-size parts whose concatenation reproduces the original exactly.
package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// ErrArchive marks any failure during compression or source-folder removal.
// Callers abort the day's pipeline run on it; the folder stays on disk for
// the next recovery sweep.
var ErrArchive = errors.New("archive failed")

// imageExts are the file extensions included in an archive; anything else in
// the day folder is ignored.
var imageExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".webp": true,
}

// Summary describes a produced archive. TotalBytes is the uncompressed size
// of the included images, which is what the mail subject reports.
type Summary struct {
	Path       string
	TotalBytes int64
	ImageCount int
}

// Archive compresses every image file under folder into dst and removes the
// folder on success. An existing dst (a stale partial archive from a crashed
// run) is overwritten. The removal is irrecoverable; callers must have
// decided to process this folder exactly once before calling.
func Archive(folder, dst string, logger zerolog.Logger) (Summary, error) {
	logger.Info().Str("folder", folder).Str("archive", dst).Msg("archiving day folder")

	sum := Summary{Path: dst}

	out, err := os.Create(dst)
	if err != nil {
		return sum, fmt.Errorf("%w: create %s: %w", ErrArchive, dst, err)
	}
	zw := zip.NewWriter(out)

	walkErr := filepath.WalkDir(folder, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !imageExts[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		rel, err := filepath.Rel(folder, path)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		w, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		_, err = io.Copy(w, f)
		f.Close()
		if err != nil {
			return err
		}
		sum.TotalBytes += info.Size()
		sum.ImageCount++
		return nil
	})
	if walkErr == nil {
		walkErr = zw.Close()
	} else {
		zw.Close()
	}
	if cerr := out.Close(); walkErr == nil {
		walkErr = cerr
	}
	if walkErr != nil {
		return sum, fmt.Errorf("%w: %s: %w", ErrArchive, folder, walkErr)
	}

	if err := os.RemoveAll(folder); err != nil {
		return sum, fmt.Errorf("%w: remove %s: %w", ErrArchive, folder, err)
	}

	logger.Info().
		Str("archive", dst).
		Int("images", sum.ImageCount).
		Int64("bytes", sum.TotalBytes).
		Msg("archive created, folder removed")
	return sum, nil
}

// Split cuts the file at path into consecutive byte ranges of at most
// maxBytes each and returns the part paths in order. Part names carry a
// zero-padded index ("<path>.part001") so lexical and numeric order agree.
// Existing part files are overwritten. An empty input yields no parts.
func Split(path string, maxBytes int64) ([]string, error) {
	if maxBytes < 1 {
		return nil, fmt.Errorf("split %s: max size must be at least 1 byte", path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("split: %w", err)
	}
	defer f.Close()

	var parts []string
	buf := make([]byte, maxBytes)
	for i := 1; ; i++ {
		n, rerr := io.ReadFull(f, buf)
		if n > 0 {
			part := PartName(path, i)
			if werr := os.WriteFile(part, buf[:n], 0o644); werr != nil {
				return parts, fmt.Errorf("split: %w", werr)
			}
			parts = append(parts, part)
		}
		if rerr != nil {
			if errors.Is(rerr, io.EOF) || errors.Is(rerr, io.ErrUnexpectedEOF) {
				return parts, nil
			}
			return parts, fmt.Errorf("split: %w", rerr)
		}
	}
}

// PartName returns the name of the i-th split part (1-based) for path.
func PartName(path string, i int) string {
	return fmt.Sprintf("%s.part%03d", path, i)
}
