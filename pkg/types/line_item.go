package types

// LineItem is one row on an invoice. Amount is in minor units and already
// multiplied by Quantity; Quantity is kept for display only.
type LineItem struct {
	Description string `json:"description"`
	Amount      int64  `json:"amount"`
	Quantity    int    `json:"quantity,omitempty"`
}

// LineItems is stored as a JSON array on the invoice row.
type LineItems []LineItem
