package models

// CreditEntryState is the lifecycle of one ledger entry. Reservations become
// committed on success or disappear on release; committed entries are final.
type CreditEntryState string

const (
	CreditReserved  CreditEntryState = "reserved"
	CreditCommitted CreditEntryState = "committed"
)

// CreditAccountModel holds a user's spending ceiling. The row doubles as the
// lock target for atomic check-and-reserve.
type CreditAccountModel struct {
	Base
	UserID       string `json:"user_id"       gorm:"uniqueIndex;not null"`
	CreditsLimit int64  `json:"credits_limit" gorm:"not null"`
}

func (CreditAccountModel) TableName() string { return "credit_accounts" }

// CreditLedgerEntryModel is one reservation or commitment against an account.
// Usage is derived by summing entries, never stored as a counter.
type CreditLedgerEntryModel struct {
	Base
	UserID          string           `json:"user_id"          gorm:"index;not null"`
	ActionType      string           `json:"action_type"      gorm:"not null"` // media kind
	CreditsConsumed int64            `json:"credits_consumed" gorm:"not null"`
	State           CreditEntryState `json:"state"            gorm:"index;not null"`
	CampaignID      *string          `json:"campaign_id,omitempty" gorm:"type:char(36);index"`
}

func (CreditLedgerEntryModel) TableName() string { return "credit_ledger_entries" }
