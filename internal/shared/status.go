package shared

// GenericStatus flags reference records as usable or retired.
type GenericStatus string

const (
	StatusActive   GenericStatus = "active"
	StatusInactive GenericStatus = "inactive"
)

// Active reports whether the record can be scheduled against.
func (s GenericStatus) Active() bool {
	return s == StatusActive
}
