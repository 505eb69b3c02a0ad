package helius

import "web3-fee-distributor/internal/worker/model"

type rpcRequest struct {
	JSONRPC string              `json:"jsonrpc"`
	ID      string              `json:"id"`
	Method  string              `json:"method"`
	Params  tokenAccountsParams `json:"params"`
}

type tokenAccountsParams struct {
	Page           int            `json:"page"`
	Limit          int            `json:"limit"`
	DisplayOptions map[string]any `json:"displayOptions"`
	Mint           string         `json:"mint"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type tokenAccountsResponse struct {
	Result struct {
		Total         int            `json:"total"`
		Limit         int            `json:"limit"`
		Page          int            `json:"page"`
		TokenAccounts []TokenAccount `json:"token_accounts"`
	} `json:"result"`
	Error *rpcError `json:"error"`
}

type TokenAccount struct {
	Address         string           `json:"address"`
	Mint            string           `json:"mint"`
	Owner           string           `json:"owner"`
	Amount          uint64           `json:"amount"`
	Frozen          bool             `json:"frozen"`
	TokenExtensions *TokenExtensions `json:"token_extensions,omitempty"`
}

type TokenExtensions struct {
	TransferFeeAmount *struct {
		WithheldAmount uint64 `json:"withheld_amount"`
	} `json:"transfer_fee_amount,omitempty"`
}

func (a TokenAccount) WithheldAmount() uint64 {
	if a.TokenExtensions == nil || a.TokenExtensions.TransferFeeAmount == nil {
		return 0
	}
	return a.TokenExtensions.TransferFeeAmount.WithheldAmount
}

func (a TokenAccount) Holder() model.Holder {
	return model.Holder{
		Owner:          a.Owner,
		Address:        a.Address,
		Amount:         a.Amount,
		WithheldAmount: a.WithheldAmount(),
	}
}
