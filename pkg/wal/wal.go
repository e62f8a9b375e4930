// Package wal 以 JSON Lines 格式追加寫入的日誌檔
package wal

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

const (
	// FileModeLog rw-r--r--
	FileModeLog fs.FileMode = 0644
	// FileModeDir rwxr-xr-x
	FileModeDir fs.FileMode = 0755
)

// ErrClosed 檔案已關閉
var ErrClosed = errors.New("wal: closed")

// WAL 每筆紀錄一行 JSON，只追加不修改
type WAL struct {
	mu     sync.Mutex
	file   *os.File
	path   string
	noSync bool
	// 已寫入的紀錄數 (含開檔前既有的)
	records int
	closed  bool
}

// Option WAL 選項
type Option func(*WAL)

// WithoutSync 每筆寫入後不呼叫 fsync，交給 Close 或手動 Sync
func WithoutSync() Option {
	return func(w *WAL) {
		w.noSync = true
	}
}

// Open 開啟或建立日誌檔，上層目錄不存在時一併建立
//
// 參數:
//
//	path: 檔案路徑
//	opts: 選項
//
// 回傳:
//
//	*WAL: 日誌檔
//	error: 開檔或讀取既有紀錄失敗
func Open(path string, opts ...Option) (*WAL, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, FileModeDir); err != nil {
			return nil, fmt.Errorf("wal: create dir: %w", err)
		}
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, FileModeLog)
	if err != nil {
		return nil, fmt.Errorf("wal: open %s: %w", path, err)
	}
	w := &WAL{file: file, path: path}
	for _, opt := range opts {
		opt(w)
	}
	n := 0
	if err := w.scan(func([]byte) error { n++; return nil }); err != nil {
		file.Close()
		return nil, err
	}
	w.records = n
	return w, nil
}

// Write 寫入一筆紀錄
func (w *WAL) Write(v any) error {
	line, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("wal: encode: %w", err)
	}
	line = append(line, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	if _, err := w.file.Write(line); err != nil {
		return fmt.Errorf("wal: write: %w", err)
	}
	w.records++
	if w.noSync {
		return nil
	}
	return w.file.Sync()
}

// Sync 強制刷入硬碟
func (w *WAL) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	return w.file.Sync()
}

// Records 目前檔案中的紀錄數
func (w *WAL) Records() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.records
}

// Path 檔案路徑
func (w *WAL) Path() string {
	return w.path
}

// Close 刷入並關閉檔案，重複呼叫回傳 nil
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	syncErr := w.file.Sync()
	closeErr := w.file.Close()
	return errors.Join(syncErr, closeErr)
}

// ReadAll 從頭依序讀出每筆紀錄
// callback 回傳錯誤時停止讀取並回傳該錯誤
func (w *WAL) ReadAll(callback func(raw json.RawMessage) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	return w.scan(func(raw []byte) error { return callback(raw) })
}

func (w *WAL) scan(fn func([]byte) error) error {
	// O_APPEND 下寫入一律落在檔尾，讀完不必移回
	if _, err := w.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("wal: seek: %w", err)
	}
	decoder := json.NewDecoder(w.file)
	for {
		var raw json.RawMessage
		if err := decoder.Decode(&raw); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("wal: decode record: %w", err)
		}
		if err := fn(raw); err != nil {
			return err
		}
	}
}
