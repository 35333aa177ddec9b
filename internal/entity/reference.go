package entity

import (
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
)

// randomCode returns n alphanumeric characters drawn from the random bits of
// a fresh UUID. n must not exceed 20.
func randomCode(n int) string {
	id := uuid.New()
	s := new(big.Int).SetBytes(id[:]).Text(62)
	if len(s) < n {
		s = strings.Repeat("0", n-len(s)) + s
	}
	return s[len(s)-n:]
}

// NewPaymentReference returns a reference of the form PAY-XXXXXXXX.
func NewPaymentReference() string {
	return "PAY-" + randomCode(8)
}

// NewTransactionReference returns PREFIX-YYYYMMDD-XXXXXXXXXX where the
// prefix depends on the transaction type.
func NewTransactionReference(t TransactionType, now time.Time) string {
	prefix := "TRX"
	switch t {
	case TransactionPayment:
		prefix = "PAY"
	case TransactionRefund:
		prefix = "REF"
	case TransactionAdjustment:
		prefix = "ADJ"
	}
	return prefix + "-" + now.Format("20060102") + "-" + randomCode(10)
}

func NewReceiptReference(now time.Time) string {
	return "RCPT-" + now.Format("20060102") + "-" + randomCode(8)
}
