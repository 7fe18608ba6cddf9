package domain

// PriceBreakdown captures the monetary result of pricing a configurator selection.
type PriceBreakdown struct {
	Currency   string
	Items      []PriceLine
	ExtraPages ExtraPagesLine
	Subtotal   int64
	Total      int64
}

// PriceLine is the contribution of a single selected catalog item.
type PriceLine struct {
	ItemID   string
	Category string
	Name     string
	Amount   int64
}

// ExtraPagesLine describes the surcharge for pages above the minimum count.
type ExtraPagesLine struct {
	Pages     int
	UnitPrice int64
	Amount    int64
}
