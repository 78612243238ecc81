package events

import (
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
)

func TestFingerprintDeterministic(t *testing.T) {
	token := common.HexToAddress("0x0000000000000000000000000000000000112233")

	a := Fingerprint(token, 42)
	b := Fingerprint(token, 42)
	assert.Equal(t, a, b)
	assert.True(t, strings.HasPrefix(a, "0x"))
	assert.Len(t, a, 66)

	assert.NotEqual(t, a, Fingerprint(token, 43))
	other := common.HexToAddress("0x0000000000000000000000000000000000445566")
	assert.NotEqual(t, a, Fingerprint(other, 42))
}

func TestTokenID(t *testing.T) {
	// A long-zero address encodes shard.realm.num directly in its bytes.
	assert.Equal(t, "0.0.1234", TokenID(common.BigToAddress(big.NewInt(1234))))
	assert.Equal(t, "0.0.0", TokenID(common.Address{}))
}
