// Package ordering keeps user-defined orderings of sibling items (lists in
// the sidebar, entries in a collection) without renumbering every sibling on
// each move.
//
// Items carry an integer order key. New keys are placed halfway between
// their neighbours; only when two neighbours are adjacent integers is the
// whole sibling set rebalanced back onto Step-spaced keys.
package ordering

import (
	"fmt"
	"sort"
)

// Step is the spacing between keys after a push or a rebalance.
const Step int64 = 1000

// Item is an orderable sibling.
type Item struct {
	ID  string
	Key int64
}

// Changes describes the writes needed to apply an ordering operation:
// Create is the item being inserted or moved, Updates are siblings whose
// keys had to change.
type Changes struct {
	Create  Item
	Updates []Item
}

// Sort orders items by key, breaking ties by ID.
func Sort(items []Item) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Key != items[j].Key {
			return items[i].Key < items[j].Key
		}
		return items[i].ID < items[j].ID
	})
}

// Push appends id after the last item. items must be sorted.
func Push(items []Item, id string) Changes {
	if len(items) == 0 {
		return Changes{Create: Item{ID: id, Key: Step}}
	}
	return Changes{Create: Item{ID: id, Key: items[len(items)-1].Key + Step}}
}

// InsertBefore places id in front of items[index]. An index past the end
// appends. items must be sorted.
func InsertBefore(items []Item, index int, id string) Changes {
	if index < 0 {
		index = 0
	}
	if index >= len(items) {
		return Push(items, id)
	}

	var lower int64
	if index > 0 {
		lower = items[index-1].Key
	}
	upper := items[index].Key
	if upper-lower >= 2 {
		return Changes{Create: Item{ID: id, Key: lower + (upper-lower)/2}}
	}
	return rebalanceAround(items, index, id)
}

// Move relocates id so that it ends up at newIndex in the resulting order.
func Move(items []Item, id string, newIndex int) (Changes, error) {
	rest := make([]Item, 0, len(items))
	found := false
	for _, item := range items {
		if item.ID == id {
			found = true
			continue
		}
		rest = append(rest, item)
	}
	if !found {
		return Changes{}, fmt.Errorf("moving %s: item not found", id)
	}
	return InsertBefore(rest, newIndex, id), nil
}

// Rebalance reassigns Step-spaced keys to sorted items and returns only the
// items whose key changed.
func Rebalance(items []Item) []Item {
	var changed []Item
	for i, item := range items {
		key := Step * int64(i+1)
		if item.Key != key {
			changed = append(changed, Item{ID: item.ID, Key: key})
		}
	}
	return changed
}

// rebalanceAround spreads every sibling back onto Step-spaced keys, leaving
// the slot at index for id.
func rebalanceAround(items []Item, index int, id string) Changes {
	changes := Changes{Create: Item{ID: id, Key: Step * int64(index+1)}}
	for i, item := range items {
		pos := i + 1
		if i >= index {
			pos++
		}
		key := Step * int64(pos)
		if item.Key != key {
			changes.Updates = append(changes.Updates, Item{ID: item.ID, Key: key})
		}
	}
	return changes
}

// Apply returns a sorted copy of items with changes applied.
func Apply(items []Item, changes Changes) []Item {
	updated := make(map[string]int64, len(changes.Updates)+1)
	for _, u := range changes.Updates {
		updated[u.ID] = u.Key
	}
	updated[changes.Create.ID] = changes.Create.Key

	out := make([]Item, 0, len(items)+1)
	for _, item := range items {
		if item.ID == changes.Create.ID {
			continue
		}
		if key, ok := updated[item.ID]; ok {
			item.Key = key
		}
		out = append(out, item)
	}
	out = append(out, changes.Create)
	Sort(out)
	return out
}
