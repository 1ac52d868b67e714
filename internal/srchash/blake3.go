package srchash

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/zeebo/blake3"
)

// Blake3 identifies a directory by a BLAKE3 digest over its files, for
// checkouts that carry no git metadata.
//
// Files are visited in lexical order. Each contributes its slash-separated
// relative path, a kind byte, the executable bit and its content (or link
// target), every field length-prefixed. Timestamps, ownership and .git
// directories are ignored.
type Blake3 struct {
	RepoRoot string
}

// HashDir walks RepoRoot/dir.
func (b *Blake3) HashDir(ctx context.Context, dir string) (string, error) {
	root := filepath.Join(b.RepoRoot, filepath.FromSlash(dir))
	info, err := os.Stat(root)
	if err != nil {
		return "", fmt.Errorf("stat source directory: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("source path %s is not a directory", root)
	}

	h := blake3.New()
	writeField := func(data []byte) {
		var n [8]byte
		binary.BigEndian.PutUint64(n[:], uint64(len(data)))
		h.Write(n[:])
		h.Write(data)
	}

	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		switch {
		case d.Type()&fs.ModeSymlink != 0:
			target, err := os.Readlink(p)
			if err != nil {
				return err
			}
			writeField([]byte(rel))
			writeField([]byte{'l', 0})
			writeField([]byte(filepath.ToSlash(target)))
		case d.Type().IsRegular():
			fi, err := d.Info()
			if err != nil {
				return err
			}
			exec := byte(0)
			if fi.Mode()&0o111 != 0 {
				exec = 1
			}
			writeField([]byte(rel))
			writeField([]byte{'f', exec})
			if err := writeFileField(h, p, fi.Size()); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("hash %s: %w", strings.TrimPrefix(dir, "./"), err)
	}

	sum := h.Sum(nil)
	return hex.EncodeToString(sum), nil
}

// writeFileField streams a file into h behind its length prefix. The
// content must match the size seen during the walk.
func writeFileField(h *blake3.Hasher, path string, size int64) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(size))
	h.Write(n[:])
	copied, err := io.Copy(h, io.LimitReader(f, size+1))
	if err != nil {
		return err
	}
	if copied != size {
		return fmt.Errorf("%s changed while hashing", path)
	}
	return nil
}
