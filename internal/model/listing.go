package model

import "math/bits"

// Listing 市场挂单
type Listing struct {
	ID            uint64 `json:"id"`
	Seller        string `json:"seller"`
	Amount        uint64 `json:"amount"`          // 托管中的代币数量, 成交或撤单后为0
	PricePerToken uint64 `json:"price_per_token"` // 单价(最小货币单位)
	Active        bool   `json:"active"`
}

// TotalCost 计算挂单总价, 溢出时 ok 为 false
func (l Listing) TotalCost() (total uint64, ok bool) {
	return MulTotal(l.Amount, l.PricePerToken)
}

// MulTotal 计算 amount*price, 溢出时 ok 为 false
func MulTotal(amount, price uint64) (uint64, bool) {
	hi, lo := bits.Mul64(amount, price)
	return lo, hi == 0
}
