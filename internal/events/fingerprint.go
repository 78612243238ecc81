package events

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// Fingerprint computes the identity digest of a trade:
// keccak256(token ++ uint256(serial)) with the packed encoding the contract
// uses. It is stable across the Create, Complete, and Cancel events of the
// same trade.
func Fingerprint(token common.Address, serial int64) string {
	packed := make([]byte, 0, 52)
	packed = append(packed, token.Bytes()...)
	packed = append(packed, common.LeftPadBytes(new(big.Int).SetInt64(serial).Bytes(), 32)...)
	return hexutil.Encode(crypto.Keccak256(packed))
}

// TokenID derives the canonical "shard.realm.num" token identifier from a
// long-zero ledger address. HTS token addresses are always long-zero encoded.
func TokenID(addr common.Address) string {
	b := addr.Bytes()
	shard := binary.BigEndian.Uint32(b[0:4])
	realm := binary.BigEndian.Uint64(b[4:12])
	num := binary.BigEndian.Uint64(b[12:20])
	return fmt.Sprintf("%d.%d.%d", shard, realm, num)
}
