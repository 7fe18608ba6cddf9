package configurator

import (
	"fmt"

	"github.com/mrpixelvns-oss/vntech-sub000/internal/domain"
)

// Toggle adds or removes itemID according to the arity of its category and returns the new state.
//
// Exclusive categories behave like radio buttons: the item replaces any other item of the category
// and re-selecting it changes nothing. Additive categories behave like checkboxes.
// Selecting the single-page item pins the page count to one; leaving it restores the floor.
func Toggle(state domain.SelectionState, itemID string, catalog *Catalog) (domain.SelectionState, error) {
	item, ok := catalog.Item(itemID)
	if !ok {
		return domain.SelectionState{}, fmt.Errorf("%w: %q", ErrItemNotFound, itemID)
	}

	next := domain.SelectionState{
		SelectedIDs: make([]string, 0, len(state.SelectedIDs)+1),
		PageCount:   state.PageCount,
	}

	switch catalog.ArityOf(item.Category) {
	case ArityOneOf:
		present := false
		for _, id := range state.SelectedIDs {
			if id == item.ID {
				present = true
				next.SelectedIDs = append(next.SelectedIDs, id)
				continue
			}
			if other, ok := catalog.Item(id); ok && other.Category == item.Category {
				continue
			}
			next.SelectedIDs = append(next.SelectedIDs, id)
		}
		if !present {
			next.SelectedIDs = append(next.SelectedIDs, item.ID)
		}
	default:
		removed := false
		for _, id := range state.SelectedIDs {
			if id == item.ID {
				removed = true
				continue
			}
			next.SelectedIDs = append(next.SelectedIDs, id)
		}
		if !removed {
			next.SelectedIDs = append(next.SelectedIDs, item.ID)
		}
	}

	next.PageCount = settlePageCount(next, catalog)
	return next, nil
}

// SetPageCount moves the page count by delta without going below the floor.
// It is a no-op while the selection is pinned to the single-page item.
func SetPageCount(state domain.SelectionState, delta int, catalog *Catalog) domain.SelectionState {
	next := state.Clone()
	if IsPinned(state, catalog) {
		return next
	}
	next.PageCount = max(catalog.MinPageCount(), state.PageCount+delta)
	return next
}

// IsPinned reports whether the selection contains the single-page item.
func IsPinned(state domain.SelectionState, catalog *Catalog) bool {
	id := catalog.SinglePageItemID()
	return id != "" && state.Contains(id)
}

// DefaultSelection returns the state a new visitor starts from.
func DefaultSelection(catalog *Catalog) domain.SelectionState {
	state := domain.SelectionState{PageCount: catalog.MinPageCount()}
	for _, id := range catalog.Defaults() {
		if state.Contains(id) {
			continue
		}
		next, err := Toggle(state, id, catalog)
		if err != nil {
			// defaults are validated by NewCatalog
			continue
		}
		state = next
	}
	return state
}

// Validate checks a selection received from an untrusted client against the catalog rules.
func Validate(state domain.SelectionState, catalog *Catalog) error {
	seen := make(map[string]struct{}, len(state.SelectedIDs))
	exclusive := make(map[string]string)
	for _, id := range state.SelectedIDs {
		item, ok := catalog.Item(id)
		if !ok {
			return fmt.Errorf("%w: %q", ErrItemNotFound, id)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: item %q selected twice", ErrInvalidSelection, id)
		}
		seen[id] = struct{}{}
		if catalog.ArityOf(item.Category) != ArityOneOf {
			continue
		}
		if other, taken := exclusive[item.Category]; taken {
			return fmt.Errorf("%w: %q and %q share exclusive category %q", ErrInvalidSelection, other, id, item.Category)
		}
		exclusive[item.Category] = id
	}

	if IsPinned(state, catalog) {
		if state.PageCount != pinnedPageCount {
			return fmt.Errorf("%w: single-page selection must have page count %d", ErrInvalidSelection, pinnedPageCount)
		}
		return nil
	}
	if state.PageCount < catalog.MinPageCount() {
		return fmt.Errorf("%w: page count must be at least %d", ErrInvalidSelection, catalog.MinPageCount())
	}
	return nil
}

// Normalize repairs the page count of a selection so it satisfies the pinning and floor rules.
func Normalize(state domain.SelectionState, catalog *Catalog) domain.SelectionState {
	next := state.Clone()
	next.PageCount = settlePageCount(next, catalog)
	return next
}

func settlePageCount(state domain.SelectionState, catalog *Catalog) int {
	if IsPinned(state, catalog) {
		return pinnedPageCount
	}
	if state.PageCount < catalog.MinPageCount() {
		return catalog.MinPageCount()
	}
	return state.PageCount
}
