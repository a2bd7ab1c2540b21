package funds

import "errors"

// Faucet errors.
var (
	ErrFaucetDisabled  = errors.New("faucet is disabled")
	ErrAirdropTooLarge = errors.New("airdrop amount exceeds faucet limit")
)
