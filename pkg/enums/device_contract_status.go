package enums

// DeviceContractStatus tracks a device financing agreement.
type DeviceContractStatus string

const (
	DeviceContractActive     DeviceContractStatus = "active"
	DeviceContractCompleted  DeviceContractStatus = "completed"
	DeviceContractTerminated DeviceContractStatus = "terminated"
	DeviceContractDefaulted  DeviceContractStatus = "defaulted"
)

var validDeviceContractStatuses = []DeviceContractStatus{
	DeviceContractActive,
	DeviceContractCompleted,
	DeviceContractTerminated,
	DeviceContractDefaulted,
}

func (s DeviceContractStatus) IsValid() bool {
	return oneOf(validDeviceContractStatuses, s)
}

func ParseDeviceContractStatus(value string) (DeviceContractStatus, error) {
	return parseOneOf(validDeviceContractStatuses, value, "device contract status")
}
