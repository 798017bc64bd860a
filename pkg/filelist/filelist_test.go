// Copyright (c) 2026, mozhaa and the hanyuu contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package filelist

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestIntsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "processed.txt")

	l, err := Ints(path)
	if err != nil {
		t.Fatalf("open missing file: %v", err)
	}
	if l.Len() != 0 {
		t.Fatalf("expected empty list, got %d items", l.Len())
	}
	l.Append(3, 1, 2)
	if err := l.Close(true); err != nil {
		t.Fatalf("close: %v", err)
	}

	l2, err := Ints(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer l2.Close(false)

	want := []int64{3, 1, 2}
	if !reflect.DeepEqual(l2.Items(), want) {
		t.Fatalf("got %v, want %v", l2.Items(), want)
	}
	if !l2.Contains(1) || l2.Contains(99) {
		t.Fatalf("Contains misbehaves: %v", l2.Items())
	}
}

func TestIntsDiscardOnClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "processed.txt")

	l, err := Ints(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	l.Append(7)
	if err := l.Close(false); err != nil {
		t.Fatalf("close: %v", err)
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("discarded close should not create the file, stat err = %v", err)
	}
}

func TestIntsParseFailureReleasesLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "processed.txt")
	if err := os.WriteFile(path, []byte("12\nnot a number\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Ints(path); err == nil {
		t.Fatal("expected parse error")
	}

	// the lock must be free again once the content is repaired
	if err := os.WriteFile(path, []byte("12\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	l, err := Ints(path)
	if err != nil {
		t.Fatalf("reopen after repair: %v", err)
	}
	defer l.Close(false)
	if !reflect.DeepEqual(l.Items(), []int64{12}) {
		t.Fatalf("got %v, want [12]", l.Items())
	}
}

func TestJSONRoundTrip(t *testing.T) {
	type entry struct {
		InfoHash string `json:"infohash"`
		Name     string `json:"name"`
		SourceID int64  `json:"source_id"`
	}
	path := filepath.Join(t.TempDir(), "downloading_torrents.json")

	l, err := JSON[entry](path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	l.Append(entry{InfoHash: "ab12", Name: "x.mkv", SourceID: 5})
	if err := l.Close(true); err != nil {
		t.Fatalf("close: %v", err)
	}

	l2, err := JSON[entry](path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer l2.Close(false)

	if l2.Len() != 1 || l2.Items()[0].SourceID != 5 {
		t.Fatalf("unexpected items: %+v", l2.Items())
	}

	l2.Replace(nil)
	if l2.Len() != 0 {
		t.Fatalf("Replace(nil) should empty the list")
	}
}

func TestReadOnlyNeverWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "processed.txt")
	if err := os.WriteFile(path, []byte("1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	l, err := Ints(path, ReadOnly())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	l.Append(2)
	if err := l.Close(true); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "1\n" {
		t.Fatalf("read-only list modified the file: %q", data)
	}
}

func TestLockExcludesSecondOpener(t *testing.T) {
	path := filepath.Join(t.TempDir(), "processed.txt")

	l, err := Ints(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	opened := make(chan struct{})
	go func() {
		l2, err := Ints(path)
		if err == nil {
			l2.Close(false)
		}
		close(opened)
	}()

	select {
	case <-opened:
		t.Fatal("second open succeeded while lock was held")
	case <-time.After(50 * time.Millisecond):
	}

	if err := l.Close(true); err != nil {
		t.Fatalf("close: %v", err)
	}

	select {
	case <-opened:
	case <-time.After(2 * time.Second):
		t.Fatal("second open never proceeded after release")
	}
}
