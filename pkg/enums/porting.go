package enums

type PortingDirection string

const (
	PortIn  PortingDirection = "port_in"
	PortOut PortingDirection = "port_out"
)

var validPortingDirections = []PortingDirection{PortIn, PortOut}

func (d PortingDirection) IsValid() bool {
	return oneOf(validPortingDirections, d)
}

func ParsePortingDirection(value string) (PortingDirection, error) {
	return parseOneOf(validPortingDirections, value, "porting direction")
}

// PortingStatus tracks a number porting request.
type PortingStatus string

const (
	PortingRequested PortingStatus = "requested"
	PortingApproved  PortingStatus = "approved"
	PortingRejected  PortingStatus = "rejected"
	PortingCompleted PortingStatus = "completed"
	PortingCancelled PortingStatus = "cancelled"
)

var validPortingStatuses = []PortingStatus{
	PortingRequested,
	PortingApproved,
	PortingRejected,
	PortingCompleted,
	PortingCancelled,
}

func (s PortingStatus) IsValid() bool {
	return oneOf(validPortingStatuses, s)
}

// IsOpen reports whether the request can still change.
func (s PortingStatus) IsOpen() bool {
	return s == PortingRequested || s == PortingApproved
}

func ParsePortingStatus(value string) (PortingStatus, error) {
	return parseOneOf(validPortingStatuses, value, "porting status")
}
