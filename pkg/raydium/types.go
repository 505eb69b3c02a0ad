package raydium

import "encoding/json"

type MintInfo struct {
	Address   string `json:"address"`
	ProgramID string `json:"programId"`
	Symbol    string `json:"symbol"`
	Decimals  uint8  `json:"decimals"`
}

// PoolInfo API v3 返回的池子信息，数量为 UI 单位
type PoolInfo struct {
	Type        string   `json:"type"`
	ProgramID   string   `json:"programId"`
	ID          string   `json:"id"`
	MintA       MintInfo `json:"mintA"`
	MintB       MintInfo `json:"mintB"`
	Price       float64  `json:"price"`
	MintAmountA float64  `json:"mintAmountA"`
	MintAmountB float64  `json:"mintAmountB"`
	FeeRate     float64  `json:"feeRate"`
	TVL         float64  `json:"tvl"`
}

type poolsByIDsResponse struct {
	Success bool        `json:"success"`
	Msg     string      `json:"msg"`
	Data    []*PoolInfo `json:"data"`
}

type poolsByMintResponse struct {
	Success bool   `json:"success"`
	Msg     string `json:"msg"`
	Data    struct {
		Count       int         `json:"count"`
		Data        []*PoolInfo `json:"data"`
		HasNextPage bool        `json:"hasNextPage"`
	} `json:"data"`
}

// SwapQuote compute/swap-base-in 的结果，Raw 原样回传给 transaction 接口
type SwapQuote struct {
	Raw  json.RawMessage
	Data struct {
		InputMint            string  `json:"inputMint"`
		InputAmount          string  `json:"inputAmount"`
		OutputMint           string  `json:"outputMint"`
		OutputAmount         string  `json:"outputAmount"`
		OtherAmountThreshold string  `json:"otherAmountThreshold"`
		SlippageBps          int     `json:"slippageBps"`
		PriceImpactPct       float64 `json:"priceImpactPct"`
	}
}

type quoteEnvelope struct {
	Success bool   `json:"success"`
	Msg     string `json:"msg"`
	Data    json.RawMessage
}

type swapTxRequest struct {
	ComputeUnitPriceMicroLamports string          `json:"computeUnitPriceMicroLamports"`
	SwapResponse                  json.RawMessage `json:"swapResponse"`
	TxVersion                     string          `json:"txVersion"`
	Wallet                        string          `json:"wallet"`
	WrapSol                       bool            `json:"wrapSol"`
	UnwrapSol                     bool            `json:"unwrapSol"`
	InputAccount                  string          `json:"inputAccount,omitempty"`
	OutputAccount                 string          `json:"outputAccount,omitempty"`
}

type swapTxResponse struct {
	Success bool   `json:"success"`
	Msg     string `json:"msg"`
	Data    []struct {
		Transaction string `json:"transaction"`
	} `json:"data"`
}
