package withdrawal

import (
	"fmt"

	"github.com/bag-token/blast-bridge/bag-bridge/messenger"
)

// State is the lifecycle state of a withdrawal request.
// States up to Relayed are ordered; Failed is outside the order.
type State uint8

const (
	NotStarted State = iota
	PendingAllowance
	Approved
	ReadyToInitiate
	Initiated
	AwaitingStateRoot
	ReadyToProve
	InChallengePeriod
	ReadyToFinalize
	Relayed
	Failed
)

var stateNames = [...]string{
	NotStarted:        "NotStarted",
	PendingAllowance:  "PendingAllowance",
	Approved:          "Approved",
	ReadyToInitiate:   "ReadyToInitiate",
	Initiated:         "Initiated",
	AwaitingStateRoot: "AwaitingStateRoot",
	ReadyToProve:      "ReadyToProve",
	InChallengePeriod: "InChallengePeriod",
	ReadyToFinalize:   "ReadyToFinalize",
	Relayed:           "Relayed",
	Failed:            "Failed",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

func ParseState(name string) (State, error) {
	for i, n := range stateNames {
		if n == name {
			return State(i), nil
		}
	}
	return 0, fmt.Errorf("unknown state %q", name)
}

func (s State) MarshalText() ([]byte, error) {
	if int(s) >= len(stateNames) {
		return nil, fmt.Errorf("unknown state %d", uint8(s))
	}
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(text []byte) error {
	v, err := ParseState(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

func (s State) Terminal() bool {
	return s == Relayed || s == Failed
}

// HasHash reports whether requests in this state carry a withdrawal hash.
func (s State) HasHash() bool {
	return s >= Initiated && s <= Relayed
}

// AtLeast reports whether s is at or beyond target in the forward order.
func (s State) AtLeast(target State) bool {
	return s != Failed && target != Failed && s >= target
}

// stateOfMessage maps an oracle status to a lifecycle state.
// Statuses of L1 to L2 messages and unknown codes do not map.
func stateOfMessage(status messenger.MessageStatus) (State, bool) {
	switch status {
	case messenger.StateRootNotPublished:
		return AwaitingStateRoot, true
	case messenger.ReadyToProve:
		return ReadyToProve, true
	case messenger.InChallengePeriod:
		return InChallengePeriod, true
	case messenger.ReadyForRelay:
		return ReadyToFinalize, true
	case messenger.Relayed:
		return Relayed, true
	case messenger.UnconfirmedL1ToL2Message, messenger.FailedL1ToL2Message:
		return 0, false
	default:
		return 0, false
	}
}
