package domain

// ExecutionRecord is one entry in a profile's execution log.
// Corresponds to the execution_log table in PostgreSQL; stores retain the
// most recent 100 records per profile.
type ExecutionRecord struct {
	ID          string         // UUID
	ProfileID   string         // owning profile
	EventID     string         // triggering stream event
	TokenMint   string         // token traded
	Direction   TradeDirection // buy | sell
	SolAmount   float64        // SOL spent (buys)
	SellPercent float64        // percent of position sold (sells)
	Success     bool           // executor outcome
	Error       string         // failure detail, empty on success
	Signature   string         // transaction signature from the executor
	ExecutedAt  int64          // Unix timestamp in milliseconds
}

// ExecutionLogCap is the maximum number of records retained per profile.
const ExecutionLogCap = 100
