package walletgrp

type fundRequest struct {
	Amount string `json:"amount" validate:"required"`
}

type account struct {
	Account string `json:"account"`
	Balance string `json:"balance"`
	ChainID uint64 `json:"chainId"`
}

type balance struct {
	Contract string `json:"contract"`
	Balance  string `json:"balance"`
	Wei      string `json:"wei"`
}

type txResult struct {
	TxHash        string `json:"txHash"`
	Block         uint64 `json:"block"`
	GasUsed       uint64 `json:"gasUsed"`
	Confirmations uint64 `json:"confirmations"`
}
