package wal

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type record struct {
	Seq   int    `json:"seq"`
	Payer string `json:"payer"`
}

func TestWAL_WriteAndReadAll(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "events.log")
	w, err := Open(path)
	if err != nil {
		t.Fatalf("Open error = %v", err)
	}
	defer w.Close()

	for i := 1; i <= 3; i++ {
		if err := w.Write(record{Seq: i, Payer: "DANNON"}); err != nil {
			t.Fatalf("Write(%d) error = %v", i, err)
		}
	}
	if w.Records() != 3 {
		t.Errorf("Records() = %d, want 3", w.Records())
	}

	var got []record
	err = w.ReadAll(func(raw json.RawMessage) error {
		var r record
		if err := json.Unmarshal(raw, &r); err != nil {
			return err
		}
		got = append(got, r)
		return nil
	})
	if err != nil {
		t.Fatalf("ReadAll error = %v", err)
	}
	if len(got) != 3 || got[0].Seq != 1 || got[2].Seq != 3 {
		t.Errorf("ReadAll = %+v", got)
	}

	// 讀完後繼續寫仍然追加在檔尾
	if err := w.Write(record{Seq: 4}); err != nil {
		t.Fatalf("Write after ReadAll error = %v", err)
	}
	n := 0
	_ = w.ReadAll(func(json.RawMessage) error { n++; return nil })
	if n != 4 {
		t.Errorf("records after append = %d, want 4", n)
	}
}

func TestWAL_ReopenCountsExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.log")
	w, err := Open(path, WithoutSync())
	if err != nil {
		t.Fatalf("Open error = %v", err)
	}
	_ = w.Write(record{Seq: 1})
	_ = w.Write(record{Seq: 2})
	if err := w.Close(); err != nil {
		t.Fatalf("Close error = %v", err)
	}

	w, err = Open(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer w.Close()
	if w.Records() != 2 {
		t.Errorf("Records() after reopen = %d, want 2", w.Records())
	}
}

func TestWAL_Closed(t *testing.T) {
	w, err := Open(filepath.Join(t.TempDir(), "events.log"))
	if err != nil {
		t.Fatalf("Open error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close error = %v, want nil", err)
	}
	if err := w.Write(record{Seq: 1}); !errors.Is(err, ErrClosed) {
		t.Errorf("Write after Close error = %v, want ErrClosed", err)
	}
}

func TestWAL_CorruptRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.log")
	if err := os.WriteFile(path, []byte("{\"seq\":1}\n{broken\n"), FileModeLog); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(path); err == nil {
		t.Error("Open on corrupt file should fail")
	}
}

func TestWAL_CallbackErrorStops(t *testing.T) {
	w, err := Open(filepath.Join(t.TempDir(), "events.log"))
	if err != nil {
		t.Fatalf("Open error = %v", err)
	}
	defer w.Close()
	_ = w.Write(record{Seq: 1})
	_ = w.Write(record{Seq: 2})

	stop := errors.New("stop")
	calls := 0
	err = w.ReadAll(func(json.RawMessage) error {
		calls++
		return stop
	})
	if !errors.Is(err, stop) || calls != 1 {
		t.Errorf("ReadAll = %v after %d calls, want stop after 1", err, calls)
	}
}
