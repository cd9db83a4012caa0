package syncengine

// LocationStatus explains to consumers why cached data may be absent or
// stale. It is written only by the sync engine.
type LocationStatus int32

const (
	StatusUnknown LocationStatus = iota
	StatusOK
	StatusServerDown
	StatusServerInvalid
	StatusNoNetwork
)

func (s LocationStatus) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusServerDown:
		return "SERVER_DOWN"
	case StatusServerInvalid:
		return "SERVER_INVALID"
	case StatusNoNetwork:
		return "NO_NETWORK"
	default:
		return "UNKNOWN"
	}
}
