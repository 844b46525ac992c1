package audithook

// Action constants for audit events.
const (
	// Ledger actions
	ActionTransfer = "ledger.transfer"
	ActionMint     = "ledger.mint"
	ActionBurn     = "ledger.burn"

	// Subscription actions
	ActionSubscriptionCreated  = "subscription.created"
	ActionSubscriptionCharged  = "subscription.charged"
	ActionSubscriptionCanceled = "subscription.canceled"

	// Company actions
	ActionCompanyFounded = "company.founded"
	ActionMemberAdded    = "company.member_added"

	// Governance actions
	ActionVoteCast          = "governance.vote_cast"
	ActionElectionFinalized = "governance.election_finalized"

	// Integrity actions
	ActionDriftCorrected  = "integrity.drift_corrected"
	ActionAnomalyDetected = "integrity.anomaly_detected"
	ActionBackupCompleted = "integrity.backup_completed"

	// Rate limiting actions
	ActionRateLimited = "ratelimit.denied"
)

// Resource constants for audit events.
const (
	ResourceTransaction  = "transaction"
	ResourceSubscription = "subscription"
	ResourceCompany      = "company"
	ResourceElection     = "election"
	ResourceBalances     = "balances"
	ResourceBackup       = "backup"
	ResourceTranslator   = "translator"
)

// Category constants for audit events.
const (
	CategoryLedger     = "ledger"
	CategoryBilling    = "billing"
	CategoryAccess     = "access"
	CategoryGovernance = "governance"
	CategoryIntegrity  = "integrity"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomePartial = "partial"
)
