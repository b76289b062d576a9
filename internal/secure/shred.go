package secure

import (
	"crypto/rand"
	"io"
	"os"
)

// DefaultPasses is the number of overwrite passes Shred performs.
const DefaultPasses = 3

// Shred overwrites path with random data passes times and removes it.
// A missing file is not an error.
func Shred(path string, passes int) error {
	if passes < 1 {
		passes = 1
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	size := info.Size()
	if size > 0 {
		if err := overwrite(path, size, passes); err != nil {
			_ = os.Remove(path)
			return err
		}
	}

	return os.Remove(path)
}

func overwrite(path string, size int64, passes int) error {
	file, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	for pass := 0; pass < passes; pass++ {
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			return err
		}
		if err := overwriteWithRandom(file, size); err != nil {
			return err
		}
		if err := file.Sync(); err != nil {
			return err
		}
	}

	return file.Close()
}

func overwriteWithRandom(w io.Writer, size int64) error {
	const bufSize = 64 * 1024

	buf := make([]byte, bufSize)
	remaining := size

	for remaining > 0 {
		writeSize := bufSize
		if remaining < int64(bufSize) {
			writeSize = int(remaining)
		}

		if _, err := rand.Read(buf[:writeSize]); err != nil {
			return err
		}
		if _, err := w.Write(buf[:writeSize]); err != nil {
			return err
		}

		remaining -= int64(writeSize)
	}

	return nil
}
