package configurator

import (
	"github.com/mrpixelvns-oss/vntech-sub000/internal/domain"
)

// ComputeTotal sums the price of every selected item and the surcharge for pages above the floor.
// The page term is always zero while the selection is pinned to the single-page item.
// Ids missing from the catalog contribute nothing.
func ComputeTotal(state domain.SelectionState, catalog *Catalog, extraPageUnitPrice int64) int64 {
	var total int64
	for _, id := range state.SelectedIDs {
		if item, ok := catalog.Item(id); ok {
			total += item.Price
		}
	}
	return total + extraPages(state, catalog, extraPageUnitPrice).Amount
}

// Price returns the itemised breakdown of a selection using the catalog's extra page price.
func Price(state domain.SelectionState, catalog *Catalog) domain.PriceBreakdown {
	breakdown := domain.PriceBreakdown{
		Currency: catalog.Currency(),
		Items:    make([]domain.PriceLine, 0, len(state.SelectedIDs)),
	}
	for _, id := range state.SelectedIDs {
		item, ok := catalog.Item(id)
		if !ok {
			continue
		}
		breakdown.Items = append(breakdown.Items, domain.PriceLine{
			ItemID:   item.ID,
			Category: item.Category,
			Name:     item.Name,
			Amount:   item.Price,
		})
		breakdown.Subtotal += item.Price
	}
	breakdown.ExtraPages = extraPages(state, catalog, catalog.ExtraPageUnitPrice())
	breakdown.Total = breakdown.Subtotal + breakdown.ExtraPages.Amount
	return breakdown
}

func extraPages(state domain.SelectionState, catalog *Catalog, unitPrice int64) domain.ExtraPagesLine {
	line := domain.ExtraPagesLine{UnitPrice: max(unitPrice, 0)}
	if IsPinned(state, catalog) {
		return line
	}
	if extra := state.PageCount - catalog.MinPageCount(); extra > 0 {
		line.Pages = extra
		line.Amount = int64(extra) * line.UnitPrice
	}
	return line
}
