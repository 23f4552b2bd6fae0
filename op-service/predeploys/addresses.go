package predeploys

import "github.com/ethereum/go-ethereum/common"

// OP-stack L2 predeploys, at the same address on every chain of the stack, Blast included.
const (
	L2CrossDomainMessenger = "0x4200000000000000000000000000000000000007"
	L2StandardBridge       = "0x4200000000000000000000000000000000000010"
	L2ToL1MessagePasser    = "0x4200000000000000000000000000000000000016"
)

var (
	L2CrossDomainMessengerAddr = common.HexToAddress(L2CrossDomainMessenger)
	L2StandardBridgeAddr       = common.HexToAddress(L2StandardBridge)
	L2ToL1MessagePasserAddr    = common.HexToAddress(L2ToL1MessagePasser)
)
