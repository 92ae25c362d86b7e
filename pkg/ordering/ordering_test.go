package ordering

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func ids(items []Item) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.ID
	}
	return out
}

func TestPush(t *testing.T) {
	changes := Push(nil, "a")
	if changes.Create.Key != Step {
		t.Fatalf("expected first key %d, got %d", Step, changes.Create.Key)
	}

	items := []Item{{ID: "a", Key: 1000}, {ID: "b", Key: 2500}}
	changes = Push(items, "c")
	if changes.Create.Key != 3500 {
		t.Fatalf("expected key 3500, got %d", changes.Create.Key)
	}
	if len(changes.Updates) != 0 {
		t.Fatalf("push should not update siblings, got %v", changes.Updates)
	}
}

func TestInsertBeforeUsesGap(t *testing.T) {
	items := []Item{{ID: "a", Key: 1000}, {ID: "b", Key: 2000}}

	changes := InsertBefore(items, 1, "x")
	if changes.Create.Key != 1500 {
		t.Fatalf("expected midpoint 1500, got %d", changes.Create.Key)
	}
	if len(changes.Updates) != 0 {
		t.Fatalf("unexpected sibling updates: %v", changes.Updates)
	}

	changes = InsertBefore(items, 0, "first")
	if changes.Create.Key != 500 {
		t.Fatalf("expected 500 before the first item, got %d", changes.Create.Key)
	}

	changes = InsertBefore(items, 10, "last")
	if changes.Create.Key != 3000 {
		t.Fatalf("expected append key 3000, got %d", changes.Create.Key)
	}
}

func TestInsertBeforeRebalancesWhenNoGap(t *testing.T) {
	items := []Item{{ID: "a", Key: 1}, {ID: "b", Key: 2}, {ID: "c", Key: 3}}

	changes := InsertBefore(items, 1, "x")
	got := ids(Apply(items, changes))
	want := []string{"a", "x", "b", "c"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
	if changes.Create.Key != 2*Step {
		t.Errorf("expected rebalanced key %d, got %d", 2*Step, changes.Create.Key)
	}
	if len(changes.Updates) != 3 {
		t.Errorf("expected all three siblings updated, got %v", changes.Updates)
	}
}

func TestRepeatedInsertsKeepOrder(t *testing.T) {
	items := []Item{{ID: "a", Key: Step}, {ID: "z", Key: 2 * Step}}
	// Always insert directly after "a" to exhaust the gap quickly.
	for i := 0; i < 20; i++ {
		id := string(rune('b' + i))
		items = Apply(items, InsertBefore(items, 1, id))
		if items[1].ID != id {
			t.Fatalf("iteration %d: expected %s at index 1, got %v", i, id, ids(items))
		}
		if items[0].ID != "a" || items[len(items)-1].ID != "z" {
			t.Fatalf("iteration %d: endpoints moved: %v", i, ids(items))
		}
		for j := 1; j < len(items); j++ {
			if items[j-1].Key >= items[j].Key {
				t.Fatalf("iteration %d: keys not strictly increasing: %v", i, items)
			}
		}
	}
}

func TestMove(t *testing.T) {
	items := []Item{{ID: "a", Key: 1000}, {ID: "b", Key: 2000}, {ID: "c", Key: 3000}}

	changes, err := Move(items, "c", 0)
	if err != nil {
		t.Fatalf("Move returned error: %v", err)
	}
	if diff := cmp.Diff([]string{"c", "a", "b"}, ids(Apply(items, changes))); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}

	changes, err = Move(items, "a", 2)
	if err != nil {
		t.Fatalf("Move returned error: %v", err)
	}
	if diff := cmp.Diff([]string{"b", "c", "a"}, ids(Apply(items, changes))); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}

	if _, err := Move(items, "missing", 0); err == nil {
		t.Fatal("expected error moving unknown item")
	}
}

func TestRebalance(t *testing.T) {
	items := []Item{{ID: "a", Key: 1000}, {ID: "b", Key: 1001}, {ID: "c", Key: 3000}}
	changed := Rebalance(items)
	want := []Item{{ID: "b", Key: 2000}}
	if diff := cmp.Diff(want, changed); diff != "" {
		t.Fatalf("rebalance mismatch (-want +got):\n%s", diff)
	}
}

func TestSortTiesByID(t *testing.T) {
	items := []Item{{ID: "b", Key: 5}, {ID: "a", Key: 5}, {ID: "c", Key: 1}}
	Sort(items)
	if diff := cmp.Diff([]string{"c", "a", "b"}, ids(items)); diff != "" {
		t.Fatalf("sort mismatch (-want +got):\n%s", diff)
	}
}
