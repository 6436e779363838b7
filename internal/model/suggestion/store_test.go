package suggestion

import "testing"

func TestMemoryStoreFindByID(t *testing.T) {
	store := NewMemoryStore(Seed())

	got, ok := store.FindByID("soil-ph")
	if !ok {
		t.Fatal("expected soil-ph suggestion")
	}
	if got.Question != "How do I test my soil pH?" {
		t.Fatalf("unexpected question: %s", got.Question)
	}

	if _, ok := store.FindByID("missing"); ok {
		t.Fatal("expected lookup miss for unknown id")
	}
}

func TestMemoryStoreListIsCopy(t *testing.T) {
	store := NewMemoryStore(Seed())

	list := store.List()
	list[0].Question = "changed"

	if store.List()[0].Question == "changed" {
		t.Fatal("List must not expose internal slice")
	}
}
