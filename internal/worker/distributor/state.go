package distributor

// State 分发状态机
type State int32

const (
	StateUnvalidated State = iota
	StateValidating
	StateEstimating
	StateWithdrawing
	StateConverting
	StateSnapshotting
	StateDistributing
	StateSleeping
)

func (s State) String() string {
	switch s {
	case StateUnvalidated:
		return "unvalidated"
	case StateValidating:
		return "validating"
	case StateEstimating:
		return "estimating"
	case StateWithdrawing:
		return "withdrawing"
	case StateConverting:
		return "converting"
	case StateSnapshotting:
		return "snapshotting_rewards"
	case StateDistributing:
		return "distributing"
	case StateSleeping:
		return "sleeping"
	default:
		return "unknown"
	}
}
