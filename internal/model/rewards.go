package model

import "math/big"

// RewardSnapshot is one reward epoch announced on-chain, keyed by epoch number.
type RewardSnapshot struct {
	ID                  string `json:"id"`
	BlockNumber         uint64 `json:"block_number"`
	BlockTimestamp      int64  `json:"block_timestamp"`
	CID                 string `json:"cid"`
	SuccessfullyFetched bool   `json:"successfully_fetched"`
	Distribution        string `json:"distribution,omitempty"`
}

// RewardDistribution lists the per-user entries loaded from one blob.
type RewardDistribution struct {
	ID    string   `json:"id"`
	Users []string `json:"users"`
}

// UserRewardData is a single user's allocation within one distribution.
type UserRewardData struct {
	ID            string   `json:"id"`
	Address       string   `json:"address"`
	Distribution  string   `json:"distribution"`
	InitialAmount *big.Int `json:"initial_amount"`
	ClaimedAmount *big.Int `json:"claimed_amount"`
	Claimed       bool     `json:"claimed"`
}

// UserReward aggregates a user's allocations across epochs.
type UserReward struct {
	ID                string   `json:"id"`
	AvailableForClaim *big.Int `json:"available_for_claim"`
	ClaimedAmount     *big.Int `json:"claimed_amount"`
}

func (e *RewardSnapshot) EntityKind() Kind     { return KindRewardSnapshot }
func (e *RewardSnapshot) EntityID() string     { return e.ID }
func (e *RewardDistribution) EntityKind() Kind { return KindRewardDistribution }
func (e *RewardDistribution) EntityID() string { return e.ID }
func (e *UserRewardData) EntityKind() Kind     { return KindUserRewardData }
func (e *UserRewardData) EntityID() string     { return e.ID }
func (e *UserReward) EntityKind() Kind         { return KindUserReward }
func (e *UserReward) EntityID() string         { return e.ID }
