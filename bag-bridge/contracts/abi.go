package contracts

import "github.com/lmittmann/w3"

// ERC20
var (
	allowanceFn = w3.MustNewFunc("allowance(address owner, address spender)", "uint256")
	balanceOfFn = w3.MustNewFunc("balanceOf(address account)", "uint256")
	approveFn   = w3.MustNewFunc("approve(address spender, uint256 amount)", "bool")
)

// L2StandardBridge
var bridgeERC20Fn = w3.MustNewFunc("bridgeERC20(address localToken, address remoteToken, uint256 amount, uint32 minGasLimit, bytes extraData)", "")

// L1CrossDomainMessenger and L1StandardBridge, as called by a relayed withdrawal.
var (
	relayMessageFn        = w3.MustNewFunc("relayMessage(uint256 nonce, address sender, address target, uint256 value, uint256 minGasLimit, bytes message)", "")
	finalizeBridgeERC20Fn = w3.MustNewFunc("finalizeBridgeERC20(address localToken, address remoteToken, address from, address to, uint256 amount, bytes extraData)", "")
)

// OptimismPortal, Blast flavour: finalization takes a yield-checkpoint hint.
var (
	proveWithdrawalFn = w3.MustNewFunc("proveWithdrawalTransaction("+
		"(uint256 Nonce, address Sender, address Target, uint256 Value, uint256 GasLimit, bytes Data),"+
		"uint256,"+
		"(bytes32 Version, bytes32 StateRoot, bytes32 MessagePasserStorageRoot, bytes32 LatestBlockhash),"+
		"bytes[])", "")
	finalizeWithdrawalFn = w3.MustNewFunc("finalizeWithdrawalTransaction(uint256 hintId,"+
		"(uint256 Nonce, address Sender, address Target, uint256 Value, uint256 GasLimit, bytes Data))", "")
	provenWithdrawalsFn    = w3.MustNewFunc("provenWithdrawals(bytes32)", "bytes32 outputRoot, uint128 timestamp, uint128 l2OutputIndex, uint256 requestId")
	finalizedWithdrawalsFn = w3.MustNewFunc("finalizedWithdrawals(bytes32)", "bool")
)

// L2OutputOracle
var (
	latestBlockNumberFn     = w3.MustNewFunc("latestBlockNumber()", "uint256")
	getL2OutputIndexAfterFn = w3.MustNewFunc("getL2OutputIndexAfter(uint256 l2BlockNumber)", "uint256")
	getL2OutputFn           = w3.MustNewFunc("getL2Output(uint256 l2OutputIndex)", "bytes32 outputRoot, uint128 timestamp, uint128 l2BlockNumber")
	finalizationPeriodFn    = w3.MustNewFunc("FINALIZATION_PERIOD_SECONDS()", "uint256")
)

// L2ToL1MessagePasser
var messagePassedEvt = w3.MustNewEvent("MessagePassed(uint256 indexed nonce, address indexed sender, address indexed target, uint256 value, uint256 gasLimit, bytes data, bytes32 withdrawalHash)")
