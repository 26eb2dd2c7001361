package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

var (
	filePerm  os.FileMode = 0o644
	mkdirPerm os.FileMode = 0o755
)

// IsExistOnDisk reports whether the joined path exists.
func IsExistOnDisk(files ...string) bool {
	_, err := os.Stat(filepath.Join(files...))
	return !os.IsNotExist(err)
}

// MakeDirs creates every listed directory, parents included.
func MakeDirs(arg ...string) error {
	for _, dirPath := range arg {
		if err := os.MkdirAll(dirPath, mkdirPerm); err != nil {
			return fmt.Errorf("create dir %s: %w", dirPath, err)
		}
	}
	return nil
}

// WriteFileAtomic writes content to a temp file in the target directory and
// renames it into place, so a crash mid-write never leaves a half-written file.
func WriteFileAtomic(path, content string, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, mkdirPerm); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err = tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err = tmp.Chmod(perm); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err = tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err = os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// WriteTextFile writes content with the default 0644 permissions, atomically.
func WriteTextFile(path, content string) error {
	return WriteFileAtomic(path, content, filePerm)
}

// WritePrivateFile writes content with 0600 permissions, atomically.
func WritePrivateFile(path, content string) error {
	return WriteFileAtomic(path, content, 0o600)
}

// WriteExecutableFile writes content with 0700 permissions, atomically.
func WriteExecutableFile(path, content string) error {
	return WriteFileAtomic(path, content, 0o700)
}

// CopyFile copies a regular file, content only.
func CopyFile(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s is not a regular file", src)
	}
	source, err := os.Open(src)
	if err != nil {
		return err
	}
	defer source.Close()

	destination, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer destination.Close()
	_, err = io.Copy(destination, source)
	return err
}
