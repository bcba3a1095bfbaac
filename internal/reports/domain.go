package reports

// Totals aggregates one side of the trade over a period.
type Totals struct {
	Count   int     `json:"count"`
	Revenue float64 `json:"revenue"`
	Display string  `json:"display"`
}

// DailyPoint is one day of sales revenue.
type DailyPoint struct {
	Date    string  `json:"date"`
	Revenue float64 `json:"revenue"`
}

// Overview is the period dashboard payload.
type Overview struct {
	From      string       `json:"from"`
	To        string       `json:"to"`
	Sales     Totals       `json:"sales"`
	Purchases Totals       `json:"purchases"`
	Daily     []DailyPoint `json:"daily"`
}

// TopProduct ranks one product by quantity sold in a period.
type TopProduct struct {
	ProductID int64   `json:"product_id"`
	Name      string  `json:"name"`
	Quantity  float64 `json:"quantity"`
	Revenue   float64 `json:"revenue"`
}

// CategorySales aggregates sale lines for one category over a period.
type CategorySales struct {
	CategoryID int64   `json:"category_id"`
	Name       string  `json:"name"`
	Quantity   float64 `json:"quantity"`
	Revenue    float64 `json:"revenue"`
}

// ValuationLine is the stock value of one product or variant.
type ValuationLine struct {
	ProductID int64   `json:"product_id"`
	Name      string  `json:"name"`
	Variant   string  `json:"variant,omitempty"`
	Stock     float64 `json:"stock"`
	UnitPrice float64 `json:"unit_price"`
	Value     float64 `json:"value"`
}

// Valuation is the current value of everything on the shelves.
type Valuation struct {
	Total   float64         `json:"total"`
	Display string          `json:"display"`
	Lines   []ValuationLine `json:"lines"`
}
