package billing

import (
	"errors"
	"sort"
)

// Pack is a purchasable credit bundle. Amounts are in cents.
type Pack struct {
	ID          string `json:"id"`
	Credits     int    `json:"credits"`
	AmountCents int    `json:"amountCents"`
	Currency    string `json:"currency"`
}

// ErrUnknownPack reports a pack id that is not for sale.
var ErrUnknownPack = errors.New("unknown credit pack")

var packs = map[string]Pack{
	"pack_100":  {ID: "pack_100", Credits: 100, AmountCents: 500, Currency: "usd"},
	"pack_500":  {ID: "pack_500", Credits: 500, AmountCents: 2000, Currency: "usd"},
	"pack_1200": {ID: "pack_1200", Credits: 1200, AmountCents: 4500, Currency: "usd"},
}

// Packs returns all purchasable packs ordered by price.
func Packs() []Pack {
	out := make([]Pack, 0, len(packs))
	for _, p := range packs {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AmountCents < out[j].AmountCents })
	return out
}

// PackByID resolves a pack.
func PackByID(id string) (Pack, error) {
	p, ok := packs[id]
	if !ok {
		return Pack{}, ErrUnknownPack
	}
	return p, nil
}
