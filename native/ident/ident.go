// Package ident derives the deterministic identifiers shared between the
// venue engines and off-engine tooling. Every derivation is a pure function of
// its inputs so independent components arrive at the same ids without
// exchanging handles.
package ident

import (
	"encoding/binary"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

const (
	marketNamespace = "otc/market/"
	offerNamespace  = "otc/offer/"
	stockNamespace  = "otc/stock/"
)

// MarketID maps a human-readable market name to its 32-byte identifier. The
// same name always yields the same id.
func MarketID(name string) [32]byte {
	return ethcrypto.Keccak256Hash([]byte(marketNamespace), []byte(name))
}

// OfferID derives the identifier for the nth offer created by the engine.
func OfferID(seq uint64) [32]byte {
	return counterID(offerNamespace, seq)
}

// StockID derives the identifier for the nth stock created by the engine.
func StockID(seq uint64) [32]byte {
	return counterID(stockNamespace, seq)
}

func counterID(namespace string, seq uint64) [32]byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], seq)
	return ethcrypto.Keccak256Hash([]byte(namespace), buf[:])
}
