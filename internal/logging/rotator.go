package logging

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// FileRotator is an io.Writer that rotates its file by size. Backups are
// numbered: ucliu.log.1 is the newest, ucliu.log.N the oldest. With
// compression on, backups carry a .gz suffix.
type FileRotator struct {
	path       string
	maxBytes   int64
	maxBackups int
	compress   bool

	mu   sync.Mutex
	file *os.File
	size int64
	wg   sync.WaitGroup
}

// NewFileRotator opens cfg.FilePath for appending, creating its directory.
func NewFileRotator(cfg *Config) (*FileRotator, error) {
	maxSize := cfg.MaxSize
	if maxSize <= 0 {
		maxSize = 10
	}
	r := &FileRotator{
		path:       cfg.FilePath,
		maxBytes:   maxSize * 1024 * 1024,
		maxBackups: cfg.MaxBackups,
		compress:   cfg.Compress,
	}
	if err := os.MkdirAll(filepath.Dir(r.path), 0o750); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	if err := r.openFile(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *FileRotator) openFile() error {
	file, err := os.OpenFile(r.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("stat log file: %w", err)
	}
	r.file = file
	r.size = info.Size()
	return nil
}

// Write implements io.Writer. A record never straddles two files.
func (r *FileRotator) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		if err := r.openFile(); err != nil {
			return 0, err
		}
	}
	if r.size > 0 && r.size+int64(len(p)) > r.maxBytes {
		if err := r.rotate(); err != nil {
			return 0, fmt.Errorf("rotate log: %w", err)
		}
	}

	n, err := r.file.Write(p)
	r.size += int64(n)
	return n, err
}

// Rotate forces a rotation.
func (r *FileRotator) Rotate() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rotate()
}

func (r *FileRotator) rotate() error {
	if r.file != nil {
		if err := r.file.Close(); err != nil {
			return fmt.Errorf("close current log: %w", err)
		}
		r.file = nil
	}

	if r.maxBackups <= 0 {
		if err := os.Remove(r.path); err != nil && !os.IsNotExist(err) {
			return err
		}
		return r.openFile()
	}

	// Pending compression must finish before names shift.
	r.wg.Wait()
	if oldest := r.existingBackup(r.maxBackups); oldest != "" {
		os.Remove(oldest)
	}
	for i := r.maxBackups; i >= 1; i-- {
		src := r.existingBackup(i - 1)
		if src == "" {
			continue
		}
		dst := r.backupName(i)
		if strings.HasSuffix(src, ".gz") {
			dst += ".gz"
		}
		if err := os.Rename(src, dst); err != nil {
			return fmt.Errorf("rename log file: %w", err)
		}
	}

	if r.compress {
		r.wg.Add(1)
		go func(path string) {
			defer r.wg.Done()
			compressFile(path)
		}(r.backupName(1))
	}
	return r.openFile()
}

// backupName returns the uncompressed name of backup n; 0 is the live file.
func (r *FileRotator) backupName(n int) string {
	if n == 0 {
		return r.path
	}
	return r.path + "." + strconv.Itoa(n)
}

func (r *FileRotator) existingBackup(n int) string {
	name := r.backupName(n)
	if _, err := os.Stat(name); err == nil {
		return name
	}
	if n > 0 {
		if _, err := os.Stat(name + ".gz"); err == nil {
			return name + ".gz"
		}
	}
	return ""
}

func compressFile(path string) {
	input, err := os.Open(path)
	if err != nil {
		return
	}
	defer input.Close()

	output, err := os.Create(path + ".gz")
	if err != nil {
		return
	}

	gz := gzip.NewWriter(output)
	gz.Name = filepath.Base(path)
	_, err = io.Copy(gz, input)
	if cerr := gz.Close(); err == nil {
		err = cerr
	}
	if cerr := output.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path + ".gz")
		return
	}
	input.Close()
	os.Remove(path)
}

// Backups lists the rotated files, newest first.
func (r *FileRotator) Backups() []string {
	var files []string
	for i := 1; ; i++ {
		name := r.existingBackup(i)
		if name == "" {
			return files
		}
		files = append(files, name)
	}
}

// Close waits for pending compression and closes the file.
func (r *FileRotator) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.wg.Wait()
	if r.file != nil {
		err := r.file.Close()
		r.file = nil
		return err
	}
	return nil
}

// Sync flushes any buffered data to the file.
func (r *FileRotator) Sync() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file != nil {
		return r.file.Sync()
	}
	return nil
}
