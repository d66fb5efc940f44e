package ir

// Transaction statuses.
const (
	StatusApplied  = "applied"
	StatusReverted = "reverted"
)

// Transaction is one message applied by the sequential processor.
// Hex strings are 0x-prefixed; Value is a decimal uint256.
type Transaction struct {
	ID        string `json:"id"`
	FlowToken string `json:"flow_token"`
	Seq       int64  `json:"seq"`
	From      string `json:"from"`
	To        string `json:"to"`
	Value     string `json:"value"`
	Data      string `json:"data"`
	Status    string `json:"status"`
	Return    string `json:"return,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Record is an auditable change record emitted by a component. Records of
// a reverted frame never reach the store.
type Record struct {
	ID      string `json:"id"`
	TxID    string `json:"tx_id"`
	Seq     int64  `json:"seq"`
	Index   int    `json:"index"`
	Emitter string `json:"emitter"`
	Name    string `json:"name"`
	Fields  Object `json:"fields"`
}

// Component is a deployed component as the store knows it.
type Component struct {
	Address     string `json:"address"`
	Code        string `json:"code"`
	CodeHash    string `json:"code_hash"`
	ArgsHash    string `json:"args_hash"`
	Factory     string `json:"factory"`
	Deployer    string `json:"deployer"`
	Salt        string `json:"salt"`
	Initialized bool   `json:"initialized"`
	Seq         int64  `json:"seq"`
}
