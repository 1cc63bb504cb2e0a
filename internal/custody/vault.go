package custody

import (
	"fmt"
)

// Balance is a holder's asset/numeraire pair.
type Balance struct {
	Asset     int64
	Numeraire int64
}

// Vault tracks asset and numeraire balances per holder and provides the
// transfer primitives the distributor and migration gateway use. It is not
// a token bridge: external deposits are modeled as credits.
type Vault struct {
	balances map[string]*Balance
}

// NewVault creates an empty vault.
func NewVault() *Vault {
	return &Vault{balances: make(map[string]*Balance)}
}

func (v *Vault) account(holder string) *Balance {
	b, ok := v.balances[holder]
	if !ok {
		b = &Balance{}
		v.balances[holder] = b
	}
	return b
}

// CreditAsset credits asset units to holder.
func (v *Vault) CreditAsset(holder string, amount int64) {
	v.account(holder).Asset += amount
}

// CreditNumeraire credits numeraire units to holder.
func (v *Vault) CreditNumeraire(holder string, amount int64) {
	v.account(holder).Numeraire += amount
}

// TransferAsset moves asset units between holders.
func (v *Vault) TransferAsset(from, to string, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("custody: negative asset transfer %d", amount)
	}
	src := v.account(from)
	if src.Asset < amount {
		return fmt.Errorf("custody: %s asset balance %d < %d", from, src.Asset, amount)
	}
	src.Asset -= amount
	v.account(to).Asset += amount
	return nil
}

// TransferNumeraire moves numeraire units between holders.
func (v *Vault) TransferNumeraire(from, to string, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("custody: negative numeraire transfer %d", amount)
	}
	src := v.account(from)
	if src.Numeraire < amount {
		return fmt.Errorf("custody: %s numeraire balance %d < %d", from, src.Numeraire, amount)
	}
	src.Numeraire -= amount
	v.account(to).Numeraire += amount
	return nil
}

// BalanceOf returns a copy of the holder's balances.
func (v *Vault) BalanceOf(holder string) Balance {
	if b, ok := v.balances[holder]; ok {
		return *b
	}
	return Balance{}
}
