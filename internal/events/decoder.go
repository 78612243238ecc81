package events

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/lazylotto/tradescan/internal/mirror"
)

// tradeABI describes the three secure-trade event families. All parameters
// are emitted unindexed, so the full payload lives in the log data and the
// only topic is the event signature.
const tradeABI = `[
	{"type":"event","name":"TradeCreated","inputs":[
		{"name":"seller","type":"address","indexed":false},
		{"name":"buyer","type":"address","indexed":false},
		{"name":"token","type":"address","indexed":false},
		{"name":"serial","type":"uint256","indexed":false},
		{"name":"tinybarPrice","type":"uint256","indexed":false},
		{"name":"lazyPrice","type":"uint256","indexed":false},
		{"name":"expiryTime","type":"uint256","indexed":false},
		{"name":"nonce","type":"uint256","indexed":false}]},
	{"type":"event","name":"TradeCompleted","inputs":[
		{"name":"seller","type":"address","indexed":false},
		{"name":"buyer","type":"address","indexed":false},
		{"name":"token","type":"address","indexed":false},
		{"name":"serial","type":"uint256","indexed":false},
		{"name":"nonce","type":"uint256","indexed":false}]},
	{"type":"event","name":"TradeCancelled","inputs":[
		{"name":"seller","type":"address","indexed":false},
		{"name":"token","type":"address","indexed":false},
		{"name":"serial","type":"uint256","indexed":false},
		{"name":"nonce","type":"uint256","indexed":false}]}
]`

// Decoder turns mirror log records into typed events. Logs with empty data
// or an unknown topic-0 signature decode to (nil, nil) and should be skipped.
type Decoder struct {
	abi       abi.ABI
	created   common.Hash
	completed common.Hash
	cancelled common.Hash
}

// NewDecoder parses the secure-trade event schema.
func NewDecoder() (*Decoder, error) {
	parsed, err := abi.JSON(strings.NewReader(tradeABI))
	if err != nil {
		return nil, fmt.Errorf("events: parse trade abi: %w", err)
	}
	return &Decoder{
		abi:       parsed,
		created:   parsed.Events["TradeCreated"].ID,
		completed: parsed.Events["TradeCompleted"].ID,
		cancelled: parsed.Events["TradeCancelled"].ID,
	}, nil
}

// Decode parses one log record. Empty synthetic logs (data == "0x") and logs
// with an unrecognized signature return (nil, nil). A malformed payload for a
// known signature returns an error; the caller skips that single log.
func (d *Decoder) Decode(log mirror.Log) (Event, error) {
	if log.Data == "" || log.Data == "0x" {
		return nil, nil
	}
	if len(log.Topics) == 0 {
		return nil, nil
	}

	data, err := hexutil.Decode(log.Data)
	if err != nil {
		return nil, fmt.Errorf("events: decode log data: %w", err)
	}

	switch common.HexToHash(log.Topics[0]) {
	case d.created:
		return d.decodeCreated(data)
	case d.completed:
		return d.decodeCompleted(data)
	case d.cancelled:
		return d.decodeCancelled(data)
	}
	return nil, nil
}

func (d *Decoder) decodeCreated(data []byte) (Event, error) {
	vals, err := d.abi.Events["TradeCreated"].Inputs.Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("events: unpack TradeCreated: %w", err)
	}
	ev := &TradeCreated{
		Seller:       toAddress(vals[0]),
		Buyer:        toAddress(vals[1]),
		Token:        toAddress(vals[2]),
		Serial:       toInt64(vals[3]),
		TinybarPrice: toInt64(vals[4]),
		LazyPrice:    toInt64(vals[5]),
		ExpiryTime:   toInt64(vals[6]),
		Nonce:        toInt64(vals[7]),
	}
	ev.Fingerprint = Fingerprint(ev.Token, ev.Serial)
	return ev, nil
}

func (d *Decoder) decodeCompleted(data []byte) (Event, error) {
	vals, err := d.abi.Events["TradeCompleted"].Inputs.Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("events: unpack TradeCompleted: %w", err)
	}
	ev := &TradeCompleted{
		Seller: toAddress(vals[0]),
		Buyer:  toAddress(vals[1]),
		Token:  toAddress(vals[2]),
		Serial: toInt64(vals[3]),
		Nonce:  toInt64(vals[4]),
	}
	ev.Fingerprint = Fingerprint(ev.Token, ev.Serial)
	return ev, nil
}

func (d *Decoder) decodeCancelled(data []byte) (Event, error) {
	vals, err := d.abi.Events["TradeCancelled"].Inputs.Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("events: unpack TradeCancelled: %w", err)
	}
	ev := &TradeCancelled{
		Seller: toAddress(vals[0]),
		Token:  toAddress(vals[1]),
		Serial: toInt64(vals[2]),
		Nonce:  toInt64(vals[3]),
	}
	ev.Fingerprint = Fingerprint(ev.Token, ev.Serial)
	return ev, nil
}

func toAddress(v any) common.Address {
	addr, _ := v.(common.Address)
	return addr
}

func toInt64(v any) int64 {
	n, ok := v.(interface{ Int64() int64 })
	if !ok {
		return 0
	}
	return n.Int64()
}
