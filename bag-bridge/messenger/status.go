package messenger

import "fmt"

// MessageStatus is the status code of a cross-chain message, as reported by the bridge SDKs.
// The numeric values are part of the external interface.
type MessageStatus uint8

const (
	UnconfirmedL1ToL2Message MessageStatus = 0
	FailedL1ToL2Message      MessageStatus = 1
	StateRootNotPublished    MessageStatus = 2
	ReadyToProve             MessageStatus = 3
	InChallengePeriod        MessageStatus = 4
	ReadyForRelay            MessageStatus = 5
	Relayed                  MessageStatus = 6
)

func (s MessageStatus) String() string {
	switch s {
	case UnconfirmedL1ToL2Message:
		return "UNCONFIRMED_L1_TO_L2_MESSAGE"
	case FailedL1ToL2Message:
		return "FAILED_L1_TO_L2_MESSAGE"
	case StateRootNotPublished:
		return "STATE_ROOT_NOT_PUBLISHED"
	case ReadyToProve:
		return "READY_TO_PROVE"
	case InChallengePeriod:
		return "IN_CHALLENGE_PERIOD"
	case ReadyForRelay:
		return "READY_FOR_RELAY"
	case Relayed:
		return "RELAYED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(s))
	}
}
