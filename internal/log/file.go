package log

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"sync"
	"time"
)

const (
	filePrefix  = "tracectl-"
	fileSuffix  = ".jsonl"
	dateLayout  = "2006-01-02"
	latestLink  = "latest"
	dirMode     = 0o755
	logFileMode = 0o644

	// DefaultMaxFileSize caps one debug segment. Scripts driving many
	// track/untrack invocations a day roll over into numbered segments.
	DefaultMaxFileSize int64 = 8 << 20
)

// segmentPattern matches tracectl-YYYY-MM-DD.jsonl and tracectl-YYYY-MM-DD.N.jsonl.
var segmentPattern = regexp.MustCompile(`^tracectl-(\d{4}-\d{2}-\d{2})(?:\.(\d+))?\.jsonl$`)

// segmentName returns the file name of segment seq of day. Segment 0 carries
// no number.
func segmentName(day string, seq int) string {
	if seq == 0 {
		return filePrefix + day + fileSuffix
	}
	return filePrefix + day + "." + strconv.Itoa(seq) + fileSuffix
}

func fileName(t time.Time) string {
	return segmentName(t.Format(dateLayout), 0)
}

// FileWriter appends debug records to the current segment of the day. A new
// segment starts when the day changes or the segment would exceed maxSize.
// The "latest" symlink follows the segment being written.
type FileWriter struct {
	dir     string
	maxSize int64

	mu   sync.Mutex
	file *os.File
	day  string
	seq  int
	size int64
}

// NewFileWriter opens the newest segment for today in dir, creating dir if
// needed. maxSize <= 0 selects DefaultMaxFileSize.
func NewFileWriter(dir string, maxSize int64) (*FileWriter, error) {
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return nil, fmt.Errorf("creating debug log dir: %w", err)
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}

	fw := &FileWriter{dir: dir, maxSize: maxSize}
	fw.mu.Lock()
	defer fw.mu.Unlock()
	day := time.Now().Format(dateLayout)
	if err := fw.openLocked(day, fw.lastSegment(day)); err != nil {
		return nil, err
	}
	return fw, nil
}

// Write implements io.Writer. A record is never split across segments.
func (fw *FileWriter) Write(p []byte) (int, error) {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	if fw.file == nil {
		return 0, os.ErrClosed
	}

	day := time.Now().Format(dateLayout)
	switch {
	case day != fw.day:
		if err := fw.openLocked(day, 0); err != nil {
			return 0, err
		}
	case fw.size > 0 && fw.size+int64(len(p)) > fw.maxSize:
		if err := fw.openLocked(day, fw.seq+1); err != nil {
			return 0, err
		}
	}

	n, err := fw.file.Write(p)
	fw.size += int64(n)
	return n, err
}

// Close closes the current segment.
func (fw *FileWriter) Close() error {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	if fw.file == nil {
		return nil
	}
	err := fw.file.Close()
	fw.file = nil
	return err
}

// lastSegment returns the highest segment number present for day.
func (fw *FileWriter) lastSegment(day string) int {
	entries, err := os.ReadDir(fw.dir)
	if err != nil {
		return 0
	}
	last := 0
	for _, entry := range entries {
		m := segmentPattern.FindStringSubmatch(entry.Name())
		if m == nil || m[1] != day || m[2] == "" {
			continue
		}
		if seq, err := strconv.Atoi(m[2]); err == nil && seq > last {
			last = seq
		}
	}
	return last
}

func (fw *FileWriter) openLocked(day string, seq int) error {
	if fw.file != nil {
		fw.file.Close()
		fw.file = nil
	}

	name := segmentName(day, seq)
	f, err := os.OpenFile(filepath.Join(fw.dir, name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, logFileMode)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("stat log file: %w", err)
	}

	fw.file = f
	fw.day = day
	fw.seq = seq
	fw.size = info.Size()
	fw.linkLatest(name)
	return nil
}

// linkLatest swaps the latest symlink through a rename. Failures are ignored.
func (fw *FileWriter) linkLatest(target string) {
	link := filepath.Join(fw.dir, latestLink)
	tmp := link + ".tmp"

	os.Remove(tmp)
	if err := os.Symlink(target, tmp); err != nil {
		return
	}
	_ = os.Rename(tmp, link)
}

// Cleanup removes debug segments in dir whose day is older than retentionDays.
func Cleanup(dir string, retentionDays int) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m := segmentPattern.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		day, err := time.Parse(dateLayout, m[1])
		if err != nil {
			continue
		}
		if day.Before(cutoff) {
			os.Remove(filepath.Join(dir, entry.Name()))
		}
	}
}
