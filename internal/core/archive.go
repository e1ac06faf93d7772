package core

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"
)

// MoveToDone moves src into doneDir under the same name and returns the new
// path. An existing file with that name is overwritten.
func MoveToDone(src, doneDir string) (string, error) {
	if err := os.MkdirAll(doneDir, 0755); err != nil {
		return "", fmt.Errorf("create archive folder: %w", err)
	}

	dest := filepath.Join(doneDir, filepath.Base(src))
	err := os.Rename(src, dest)
	if err == nil {
		return dest, nil
	}
	if !errors.Is(err, syscall.EXDEV) {
		return "", fmt.Errorf("move %s to archive: %w", filepath.Base(src), err)
	}

	// Archive lives on another volume.
	if err := copyFile(src, dest); err != nil {
		return "", fmt.Errorf("copy %s to archive: %w", filepath.Base(src), err)
	}
	if err := os.Remove(src); err != nil {
		return dest, fmt.Errorf("remove %s after archiving: %w", filepath.Base(src), err)
	}
	return dest, nil
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
