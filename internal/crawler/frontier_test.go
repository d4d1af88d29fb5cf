package crawler

import "testing"

func TestFrontierFIFOOrder(t *testing.T) {
	t.Parallel()

	f := NewFrontier("https://example.com/")
	f.Push("https://example.com/a")
	f.Push("https://example.com/b")

	want := []string{"https://example.com/", "https://example.com/a", "https://example.com/b"}
	for _, expected := range want {
		got, ok := f.Pop()
		if !ok || got != expected {
			t.Fatalf("Pop() = (%q, %v), want %q", got, ok, expected)
		}
	}
	if _, ok := f.Pop(); ok {
		t.Fatal("expected empty frontier")
	}
}

func TestFrontierDeduplicates(t *testing.T) {
	t.Parallel()

	f := NewFrontier("https://example.com/")
	if f.Push("https://example.com/") {
		t.Fatal("queued URL accepted twice")
	}
	if f.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", f.Len())
	}

	url, _ := f.Pop()
	f.MarkVisited(url)
	if f.Push(url) {
		t.Fatal("visited URL accepted again")
	}
	if !f.Push("https://example.com/new") {
		t.Fatal("fresh URL rejected")
	}
}

func TestFrontierVisitedCount(t *testing.T) {
	t.Parallel()

	f := NewFrontier("https://example.com/")
	if f.VisitedCount() != 0 {
		t.Fatalf("VisitedCount() = %d, want 0", f.VisitedCount())
	}
	f.MarkVisited("https://example.com/")
	f.MarkVisited("https://example.com/")
	if f.VisitedCount() != 1 {
		t.Fatalf("VisitedCount() = %d, want 1", f.VisitedCount())
	}
}
