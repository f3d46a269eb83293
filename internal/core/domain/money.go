package domain

import "github.com/shopspring/decimal"

type Currency string

const (
	RUB Currency = "RUB"
	USD Currency = "USD"
	EUR Currency = "EUR"
	GBP Currency = "GBP"
	CNY Currency = "CNY"
)

// IsValid reports whether the currency is one we support.
func (c Currency) IsValid() bool {
	switch c {
	case RUB, USD, EUR, GBP, CNY:
		return true
	}
	return false
}

type PaymentMethod string

const (
	MethodCard         PaymentMethod = "CARD"
	MethodBankTransfer PaymentMethod = "BANK_TRANSFER"
	MethodEWallet      PaymentMethod = "E_WALLET"
	MethodCrypto       PaymentMethod = "CRYPTO"
	MethodSBP          PaymentMethod = "SBP"
	MethodApplePay     PaymentMethod = "APPLE_PAY"
	MethodGooglePay    PaymentMethod = "GOOGLE_PAY"
)

func (m PaymentMethod) IsValid() bool {
	switch m {
	case MethodCard, MethodBankTransfer, MethodEWallet, MethodCrypto, MethodSBP, MethodApplePay, MethodGooglePay:
		return true
	}
	return false
}

// IsPositive reports whether amount is strictly greater than zero.
// Every money-moving operation in the system requires a positive amount.
func IsPositive(amount decimal.Decimal) bool {
	return amount.GreaterThan(decimal.Zero)
}
