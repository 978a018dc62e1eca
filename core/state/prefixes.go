package state

var (
	stakeRecordKeyFormat  = "staking/record/%020d"
	stakeAccountPrefix    = []byte("staking/account/")
	stakeAccountIndexKey  = []byte("staking/accounts")
	paramStorePrefix      = []byte("params/")
	custodyStorePrefix    = []byte("custody/")
)
