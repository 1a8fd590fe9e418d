package grpcserver

import "hintbook/api/view"

// Amounts and prices are decimal strings; see view.Units.

type DepositRequest struct {
	Account string `json:"account"`
	Asset   string `json:"asset"`
	Amount  string `json:"amount"`
}

type DepositResponse struct {
	Balance string `json:"balance"`
}

type WithdrawRequest struct {
	Account string `json:"account"`
	Asset   string `json:"asset"`
	Amount  string `json:"amount"`
}

type WithdrawResponse struct {
	Balance string `json:"balance"`
}

type InsertOrderRequest struct {
	Account  string `json:"account"`
	Side     string `json:"side"`
	Price    string `json:"price"`
	Quantity uint64 `json:"quantity"`
	PrevHint uint64 `json:"prev_hint"`
}

type InsertOrderResponse struct {
	// OrderID is 0 when the order filled completely.
	OrderID uint64       `json:"order_id"`
	Events  []view.Event `json:"events"`
}

type ModifyOrderRequest struct {
	Account  string `json:"account"`
	Side     string `json:"side"`
	OrderID  uint64 `json:"order_id"`
	Quantity uint64 `json:"quantity"`
}

type ModifyOrderResponse struct {
	Events []view.Event `json:"events"`
}

type CancelOrderRequest struct {
	Account string `json:"account"`
	Side    string `json:"side"`
	PrevID  uint64 `json:"prev_id"`
	OrderID uint64 `json:"order_id"`
}

type CancelOrderResponse struct {
	Events []view.Event `json:"events"`
}

type ClaimRequest struct {
	Account string `json:"account"`
}

type ClaimResponse struct {
	Settlement string `json:"settlement"`
	Inventory  string `json:"inventory"`
}

type GetOrderRequest struct {
	Side    string `json:"side"`
	OrderID uint64 `json:"order_id"`
}

type GetOrderResponse struct {
	Live  bool       `json:"live"`
	Order view.Order `json:"order"`
}

type GetHeadRequest struct {
	Side string `json:"side"`
}

type GetHeadResponse struct {
	Head        uint64 `json:"head"`
	NextOrderID uint64 `json:"next_order_id"`
}

type GetClaimableRequest struct {
	Account string `json:"account"`
}

type GetClaimableResponse struct {
	Settlement string `json:"settlement"`
	Inventory  string `json:"inventory"`
}

type GetDepthRequest struct {
	Side  string `json:"side"`
	Limit int    `json:"limit"`
}

type GetDepthResponse struct {
	Orders []view.Order `json:"orders"`
}
