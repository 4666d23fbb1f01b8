package model

// RewardState is a snapshot of the global reward accumulator.
type RewardState struct {
	RewardToken         string `json:"reward_token"`
	TotalStakeValue     string `json:"total_stake_value"`
	RewardRate          string `json:"reward_rate"`
	PeriodFinish        uint64 `json:"period_finish"`
	LastUpdateTime      uint64 `json:"last_update_time"`
	RewardPerStakeValue string `json:"reward_per_stake_value_stored"`
	RewardsDuration     uint64 `json:"rewards_duration"`
	LockupDuration      uint64 `json:"lockup_duration"`
	LockPolicy          string `json:"lock_policy"`
	TotalNotified       string `json:"total_notified"`
	TotalPaid           string `json:"total_paid"`
	Stakers             int    `json:"stakers"`
}
