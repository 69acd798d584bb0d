package models

import "errors"

// Order and ledger failures. All of them are recoverable and user-visible.
var (
	ErrInvalidQuantity      = errors.New("invalid quantity")
	ErrInvalidPrice         = errors.New("invalid price")
	ErrInvalidSymbol        = errors.New("invalid symbol")
	ErrInsufficientHoldings = errors.New("insufficient holdings")
	ErrInsufficientCash     = errors.New("insufficient cash")
	ErrSymbolNotFound       = errors.New("unknown symbol")
	ErrPriceUnavailable     = errors.New("no price available")
	ErrOrderInProgress      = errors.New("order already in progress for symbol")
	ErrRemoteOrderFailed    = errors.New("remote order failed")
	ErrRefreshFailed        = errors.New("portfolio refresh failed")
	ErrNotAuthenticated     = errors.New("not logged in")
)
