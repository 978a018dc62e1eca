package params

const (
	// KeyRewardRate stores the reward emitted per staked item per height unit.
	KeyRewardRate = "staking/reward-rate"
	// KeyUnbondingPeriod stores the wait between unstake and withdrawal.
	KeyUnbondingPeriod = "staking/unbonding-period"
	// KeyClaimDelay stores the wait between first stake and first claim.
	KeyClaimDelay = "staking/claim-delay"
	// KeyPaused stores the stake/unstake pause toggle.
	KeyPaused = "staking/paused"
	// KeyController stores the privileged controller address.
	KeyController = "staking/controller"
)
