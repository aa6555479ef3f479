package catalog

import (
	"testing"
)

// publishThree seeds the registry with three items in a known order:
// C1 by alice in genre 1, C2 by bob in genre 2, C3 by alice in genre 1.
func publishThree(t *testing.T, engine *Engine, directory *ManagerDirectory) (c1, c2, c3 [20]byte) {
	t.Helper()
	alice, bob := addr(0x01), addr(0x02)
	c1, c2, c3 = addr(0xA1), addr(0xA2), addr(0xA3)
	mustPublish(t, engine, directory, c1, alice, "one", 1, "body-1")
	mustPublish(t, engine, directory, c2, bob, "two", 2, "body-2")
	mustPublish(t, engine, directory, c3, alice, "three", 1, "body-3")
	return c1, c2, c3
}

func TestContentListPublicationOrder(t *testing.T) {
	state := newMockState()
	engine, directory := newTestEngine(state)
	c1, c2, c3 := publishThree(t, engine, directory)

	refs, err := engine.ContentList()
	if err != nil {
		t.Fatalf("content list failed: %v", err)
	}
	want := [][20]byte{c1, c2, c3}
	if len(refs) != len(want) {
		t.Fatalf("expected %d refs, got %d", len(want), len(refs))
	}
	for i := range want {
		if refs[i] != want[i] {
			t.Fatalf("ref %d mismatch", i)
		}
	}
}

func TestStatisticsTrackViews(t *testing.T) {
	state := newMockState()
	engine, directory := newTestEngine(state)
	c1, c2, _ := publishThree(t, engine, directory)
	state.contents[c1].Views = 5
	state.contents[c2].Views = 2

	refs, views, err := engine.Statistics()
	if err != nil {
		t.Fatalf("statistics failed: %v", err)
	}
	if len(refs) != 3 || len(views) != 3 {
		t.Fatalf("expected 3 entries, got %d/%d", len(refs), len(views))
	}
	if views[0] != 5 || views[1] != 2 || views[2] != 0 {
		t.Fatalf("view counts mismatch: %v", views)
	}
}

func TestNewContentListMostRecentFirst(t *testing.T) {
	state := newMockState()
	engine, directory := newTestEngine(state)
	c1, c2, c3 := publishThree(t, engine, directory)

	refs, err := engine.NewContentList(2)
	if err != nil {
		t.Fatalf("new content list failed: %v", err)
	}
	if len(refs) != 2 || refs[0] != c3 || refs[1] != c2 {
		t.Fatalf("expected [c3 c2], got %v", refs)
	}

	// Asking for more than the registry holds returns everything.
	refs, err = engine.NewContentList(10)
	if err != nil {
		t.Fatalf("oversized request failed: %v", err)
	}
	if len(refs) != 3 || refs[0] != c3 || refs[2] != c1 {
		t.Fatalf("expected full reversed list, got %v", refs)
	}

	refs, err = engine.NewContentList(0)
	if err != nil || len(refs) != 0 {
		t.Fatalf("zero request must return empty, got %v (%v)", refs, err)
	}
}

func TestLatestByGenreAndAuthor(t *testing.T) {
	state := newMockState()
	engine, directory := newTestEngine(state)
	_, c2, c3 := publishThree(t, engine, directory)

	content, ok, err := engine.LatestByGenre(1)
	if err != nil || !ok {
		t.Fatalf("latest by genre failed: %v ok=%v", err, ok)
	}
	if content.Ref != c3 {
		t.Fatalf("latest in genre 1 should be the third publication")
	}

	content, ok, err = engine.LatestByAuthor(addr(0x02))
	if err != nil || !ok {
		t.Fatalf("latest by author failed: %v ok=%v", err, ok)
	}
	if content.Ref != c2 {
		t.Fatalf("latest by bob should be the second publication")
	}

	if _, ok, err := engine.LatestByGenre(99); err != nil || ok {
		t.Fatalf("unknown genre must report no match, ok=%v err=%v", ok, err)
	}
}

func TestMostPopularTieGoesToLaterPublication(t *testing.T) {
	state := newMockState()
	engine, directory := newTestEngine(state)
	c1, c2, c3 := publishThree(t, engine, directory)
	state.contents[c1].Views = 5
	state.contents[c2].Views = 5
	state.contents[c3].Views = 3

	content, ok, err := engine.MostPopularByGenre(1)
	if err != nil || !ok {
		t.Fatalf("most popular by genre failed: %v ok=%v", err, ok)
	}
	if content.Ref != c1 {
		t.Fatalf("genre 1 holds c1(5) and c3(3); expected c1")
	}

	// alice owns c1(5) and c3(3); bob owns c2(5). Across a tie the scan
	// keeps the later publication.
	state.contents[c3].Views = 5
	content, ok, err = engine.MostPopularByAuthor(addr(0x01))
	if err != nil || !ok {
		t.Fatalf("most popular by author failed: %v ok=%v", err, ok)
	}
	if content.Ref != c3 {
		t.Fatalf("equal views must resolve to the later publication")
	}

	if _, ok, err := engine.MostPopularByAuthor(addr(0x77)); err != nil || ok {
		t.Fatalf("unknown author must report no match, ok=%v err=%v", ok, err)
	}
}

func TestContentAndAuthorLookups(t *testing.T) {
	state := newMockState()
	engine, directory := newTestEngine(state)
	c1, _, _ := publishThree(t, engine, directory)

	content, ok, err := engine.Content(c1)
	if err != nil || !ok {
		t.Fatalf("content lookup failed: %v ok=%v", err, ok)
	}
	if content.Title != "one" {
		t.Fatalf("unexpected title %q", content.Title)
	}

	author, ok, err := engine.Author(addr(0x01))
	if err != nil || !ok {
		t.Fatalf("author lookup failed: %v ok=%v", err, ok)
	}
	if !author.Registered {
		t.Fatalf("author must be registered after publishing")
	}

	if _, ok, err := engine.Content(addr(0xFF)); err != nil || ok {
		t.Fatalf("unknown ref must report no match, ok=%v err=%v", ok, err)
	}
	if _, ok, err := engine.Author(addr(0xFF)); err != nil || ok {
		t.Fatalf("unknown author must report no match, ok=%v err=%v", ok, err)
	}
}
