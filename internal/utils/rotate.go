package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const dateLayout = "2006-01-02"

// dailyFile is an io.Writer over <dir>/<name>. The first write on a new day
// moves yesterday's file to <base>-<date><ext> and prunes archives older
// than LogRetentionDays.
type dailyFile struct {
	dir  string
	name string
	now  func() time.Time

	mu   sync.Mutex
	file *os.File
	day  string
	// onError reports rotation problems; nil drops them.
	onError func(msg string, err error)
}

func openDailyFile(dir, name string, now func() time.Time) (*dailyFile, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	d := &dailyFile{dir: dir, name: name, now: now}
	if err := d.open(); err != nil {
		return nil, err
	}
	d.day = now().Format(dateLayout)
	return d, nil
}

func (d *dailyFile) path() string {
	return filepath.Join(d.dir, d.name)
}

func (d *dailyFile) split() (base, ext string) {
	ext = filepath.Ext(d.name)
	return strings.TrimSuffix(d.name, ext), ext
}

func (d *dailyFile) open() error {
	f, err := os.OpenFile(d.path(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	d.file = f
	return nil
}

func (d *dailyFile) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.file == nil {
		return 0, os.ErrClosed
	}
	if today := d.now().Format(dateLayout); today != d.day {
		d.rotate(today)
	}
	return d.file.Write(p)
}

// rotate must be called with mu held.
func (d *dailyFile) rotate(today string) {
	_ = d.file.Close()

	base, ext := d.split()
	archived := filepath.Join(d.dir, fmt.Sprintf("%s-%s%s", base, d.day, ext))
	if err := os.Rename(d.path(), archived); err != nil && !os.IsNotExist(err) {
		d.report("rename log file failed", err)
	}
	if err := d.open(); err != nil {
		d.report("reopen log file failed", err)
	}
	d.day = today
	d.prune()
}

// prune removes archives dated before the retention cutoff.
func (d *dailyFile) prune() {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		d.report("read log directory failed", err)
		return
	}

	cutoff := d.now().AddDate(0, 0, -LogRetentionDays)
	base, ext := d.split()
	prefix := base + "-"

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ext) {
			continue
		}
		day, err := time.Parse(dateLayout, strings.TrimSuffix(strings.TrimPrefix(name, prefix), ext))
		if err != nil || !day.Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(d.dir, name)); err != nil {
			d.report("remove old log file failed", err)
		}
	}
}

func (d *dailyFile) report(msg string, err error) {
	if d.onError != nil {
		d.onError(msg, err)
	}
}

func (d *dailyFile) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.file == nil {
		return nil
	}
	err := d.file.Close()
	d.file = nil
	return err
}
