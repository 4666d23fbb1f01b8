package model

// Lot is one deposit tracked for lock-up.
type Lot struct {
	LPAmount    string `json:"lp_amount"`
	StakeValue  string `json:"stake_value"`
	DepositTime uint64 `json:"deposit_time"`
	UnlockTime  uint64 `json:"unlock_time"`
}

// Position is a user's open stake.
type Position struct {
	User           string `json:"user"`
	Pair           string `json:"pair"`
	LPAmount       string `json:"lp_amount"`
	StakeValue     string `json:"stake_value"`
	RewardPerPaid  string `json:"reward_per_stake_value_paid"`
	RewardsAccrued string `json:"rewards_accrued"`
	Earned         string `json:"earned"`
	Lots           []Lot  `json:"lots"`
}
