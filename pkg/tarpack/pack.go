// Package tarpack bundles non-normalizable dependencies into a single
// reproducible archive for manual hosting.
//
// Each dependency's fetched content is written as its own tar.gz member
// inside an outer tar stream, and the outer stream is gzipped once
// more. All timestamps are pinned to a fixed sentinel so repeated runs
// over identical inputs produce byte-identical output; a CRC-32 over
// the final compressed bytes gives the caller a collision-resistant
// component for the output file name.
package tarpack

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"hash/crc32"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/zonrecipe/zonrecipe/pkg/errors"
	"github.com/zonrecipe/zonrecipe/pkg/resolver"
	"github.com/zonrecipe/zonrecipe/pkg/zigtool"
)

// Epoch is the fixed timestamp stamped on every archive member.
var Epoch = time.Unix(0, 0).UTC()

// Pack writes the nested archive of all entries to w and returns the
// CRC-32 (IEEE) checksum of the bytes written. Entry content is read
// from the store rooted at storeDir.
func Pack(entries []resolver.GitCommitEntry, storeDir string, w io.Writer) (uint32, error) {
	cw := &crcWriter{w: w}
	gz := gzip.NewWriter(cw)
	tw := tar.NewWriter(gz)

	for _, entry := range entries {
		inner, err := packInner(zigtool.StorePath(storeDir, entry.Hash))
		if err != nil {
			return 0, errors.Wrap(errors.ErrCodeInternal, err, "pack %s", entry.Name)
		}
		hdr := &tar.Header{
			Name:    entry.Name,
			Mode:    0o644,
			Size:    int64(len(inner)),
			ModTime: Epoch,
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return 0, errors.Wrap(errors.ErrCodeInternal, err, "pack %s", entry.Name)
		}
		if _, err := tw.Write(inner); err != nil {
			return 0, errors.Wrap(errors.ErrCodeInternal, err, "pack %s", entry.Name)
		}
	}

	if err := tw.Close(); err != nil {
		return 0, errors.Wrap(errors.ErrCodeInternal, err, "finalize archive")
	}
	if err := gz.Close(); err != nil {
		return 0, errors.Wrap(errors.ErrCodeInternal, err, "finalize archive")
	}
	return cw.sum, nil
}

// FileName returns the deterministic output file name for a packed
// archive: <project>-<checksum>.tar.gz.
func FileName(project string, checksum uint32) string {
	return project + "-" + checksumString(checksum) + ".tar.gz"
}

func checksumString(sum uint32) string {
	const hex = "0123456789abcdef"
	var b [8]byte
	for i := 7; i >= 0; i-- {
		b[i] = hex[sum&0xf]
		sum >>= 4
	}
	return string(b[:])
}

// packInner archives one dependency directory as an uncompressed tar
// stream and gzips it. filepath.WalkDir visits entries in lexical
// order, which keeps the member order deterministic.
func packInner(dir string) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		return writeMember(tw, path, filepath.ToSlash(rel), d)
	})
	if err != nil {
		return nil, err
	}

	if err := tw.Close(); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeMember(tw *tar.Writer, path, name string, d fs.DirEntry) error {
	info, err := d.Info()
	if err != nil {
		return err
	}

	link := ""
	if info.Mode()&fs.ModeSymlink != 0 {
		if link, err = os.Readlink(path); err != nil {
			return err
		}
	}

	hdr, err := tar.FileInfoHeader(info, link)
	if err != nil {
		return err
	}
	hdr.Name = name
	if info.IsDir() {
		hdr.Name += "/"
	}
	// Strip everything that varies between machines and runs.
	hdr.ModTime = Epoch
	hdr.AccessTime = time.Time{}
	hdr.ChangeTime = time.Time{}
	hdr.Uid = 0
	hdr.Gid = 0
	hdr.Uname = ""
	hdr.Gname = ""

	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(tw, f)
	return err
}

// crcWriter accumulates a CRC-32 over everything written through it.
type crcWriter struct {
	w   io.Writer
	sum uint32
}

func (c *crcWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.sum = crc32.Update(c.sum, crc32.IEEETable, p[:n])
	return n, err
}
