// Package rotate archives the previous report before a new run overwrites it.
package rotate

import (
	"archive/zip"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-errors/errors"
)

const stampLayout = "2006-01-02_15_04_05"

// Rotate renames an existing file at path to a timestamped copy, compresses
// that copy into a .zip next to it, and removes the uncompressed copy. It
// returns the archive path, or "" when there was nothing to rotate. Callers
// run this once, before any network activity.
func Rotate(path string, now time.Time) (string, error) {
	return rotate(path, now, zipFile, ".zip")
}

// RotateGzip behaves like Rotate but produces a .gz archive.
func RotateGzip(path string, now time.Time) (string, error) {
	return rotate(path, now, gzipFile, ".gz")
}

func rotate(path string, now time.Time, compress func(src, dst string) error, ext string) (string, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return "", nil
	} else if err != nil {
		return "", errors.Wrap(err, 0)
	}

	renamed := stampedName(path, now)
	if err := os.Rename(path, renamed); err != nil {
		return "", errors.Wrap(err, 0)
	}
	archive := renamed + ext
	if err := compress(renamed, archive); err != nil {
		return "", err
	}
	if err := os.Remove(renamed); err != nil {
		return "", errors.Wrap(err, 0)
	}
	return archive, nil
}

// stampedName inserts the timestamp between the file stem and its suffix:
// report.csv becomes report_2026-01-02_15_04_05.csv.
func stampedName(path string, now time.Time) string {
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	return stem + "_" + now.Format(stampLayout) + ext
}

func zipFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return errors.Wrap(err, 0)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return errors.Wrap(err, 0)
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	entry, err := zw.Create(filepath.Base(src))
	if err != nil {
		return errors.Wrap(err, 0)
	}
	if _, err := io.Copy(entry, in); err != nil {
		return errors.Wrap(err, 0)
	}
	if err := zw.Close(); err != nil {
		return errors.Wrap(err, 0)
	}
	if err := out.Close(); err != nil {
		return errors.Wrap(err, 0)
	}
	return nil
}

func gzipFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return errors.Wrap(err, 0)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return errors.Wrap(err, 0)
	}
	defer out.Close()

	gw := gzip.NewWriter(out)
	gw.Name = filepath.Base(src)
	if _, err := io.Copy(gw, in); err != nil {
		return errors.Wrap(err, 0)
	}
	if err := gw.Close(); err != nil {
		return errors.Wrap(err, 0)
	}
	if err := out.Close(); err != nil {
		return errors.Wrap(err, 0)
	}
	return nil
}
