package crawl

import (
	"fmt"
	"testing"
)

func TestFrontierPushPopFIFO(t *testing.T) {
	f := NewFrontier()

	urls := []string{
		"https://x.com/news/a",
		"https://x.com/news/b",
		"https://x.com/news/c",
	}
	for i, u := range urls {
		if !f.Push(u, i, "") {
			t.Fatalf("first push of %q returned false", u)
		}
	}

	if f.Len() != 3 {
		t.Fatalf("expected 3 queued, got %d", f.Len())
	}

	for i, want := range urls {
		e := f.Pop()
		if e == nil {
			t.Fatalf("unexpected nil at position %d", i)
		}
		if e.URL != want {
			t.Errorf("pop %d: got %q, want %q (FIFO order)", i, e.URL, want)
		}
		if e.Depth != i {
			t.Errorf("pop %d: depth %d, want %d", i, e.Depth, i)
		}
	}

	if e := f.Pop(); e != nil {
		t.Errorf("expected nil from empty frontier, got %v", e)
	}
}

func TestFrontierDedup(t *testing.T) {
	f := NewFrontier()

	if !f.Push("https://x.com/news/a", 0, "") {
		t.Fatal("first push should succeed")
	}
	if f.Push("https://x.com/news/a", 1, "https://x.com/") {
		t.Error("repeat push should return false")
	}
	if f.Len() != 1 {
		t.Errorf("expected 1 queued after duplicate push, got %d", f.Len())
	}

	// Popping does not forget: seen is permanent for the frontier's lifetime.
	f.Pop()
	if f.Push("https://x.com/news/a", 2, "") {
		t.Error("push after pop should still be deduplicated")
	}
}

func TestFrontierFragmentStripped(t *testing.T) {
	f := NewFrontier()

	f.Push("https://x.com/news/a#section-2", 0, "")
	if f.Push("https://x.com/news/a", 0, "") {
		t.Error("URL differing only by fragment should be a duplicate")
	}

	e := f.Pop()
	if e == nil || e.URL != "https://x.com/news/a" {
		t.Errorf("expected fragment-stripped URL, got %v", e)
	}
}

func TestFrontierEmptyURL(t *testing.T) {
	f := NewFrontier()

	if f.Push("", 0, "") {
		t.Error("empty URL should not be pushed")
	}
	if f.Push("   ", 0, "") {
		t.Error("whitespace URL should not be pushed")
	}
	if f.Len() != 0 {
		t.Errorf("expected empty frontier, got %d", f.Len())
	}
}

func TestCanonicalizeHostCase(t *testing.T) {
	a := Canonicalize("https://Example.COM/News/a")
	b := Canonicalize("https://example.com/News/a")
	if a != b {
		t.Errorf("host should be case-insensitive: %q vs %q", a, b)
	}

	c := Canonicalize("https://example.com:443/News/a")
	if c != b {
		t.Errorf("default port should be stripped: %q vs %q", c, b)
	}
}

func BenchmarkFrontierPushPop(b *testing.B) {
	f := NewFrontier()
	for i := 0; i < b.N; i++ {
		f.Push(fmt.Sprintf("https://x.com/news/%d", i), 0, "")
	}
	for i := 0; i < b.N; i++ {
		f.Pop()
	}
}
