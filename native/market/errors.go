package market

import "errors"

var (
	ErrNilState       = errors.New("market: state not configured")
	ErrUnauthorized   = errors.New("market: unauthorized")
	ErrInvalidName    = errors.New("market: invalid market name")
	ErrMarketExists   = errors.New("market: market already exists")
	ErrMarketNotFound = errors.New("market: market not found")
	ErrInvalidParams  = errors.New("market: invalid settlement parameters")
	ErrInvalidStatus  = errors.New("market: invalid status transition")
	ErrInvalidToken   = errors.New("market: invalid token symbol")
	ErrTokenExists    = errors.New("market: token already registered")
)
