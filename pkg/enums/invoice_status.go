package enums

// InvoiceStatus tracks an invoice from draft to settlement.
type InvoiceStatus string

const (
	InvoiceStatusDraft     InvoiceStatus = "draft"
	InvoiceStatusPending   InvoiceStatus = "pending"
	InvoiceStatusPaid      InvoiceStatus = "paid"
	InvoiceStatusOverdue   InvoiceStatus = "overdue"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
)

var validInvoiceStatuses = []InvoiceStatus{
	InvoiceStatusDraft,
	InvoiceStatusPending,
	InvoiceStatusPaid,
	InvoiceStatusOverdue,
	InvoiceStatusCancelled,
}

func (s InvoiceStatus) IsValid() bool {
	return oneOf(validInvoiceStatuses, s)
}

// IsOpen reports whether the invoice still expects a payment.
func (s InvoiceStatus) IsOpen() bool {
	return s == InvoiceStatusPending || s == InvoiceStatusOverdue || s == InvoiceStatusDraft
}

func ParseInvoiceStatus(value string) (InvoiceStatus, error) {
	return parseOneOf(validInvoiceStatuses, value, "invoice status")
}
