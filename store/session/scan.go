package session

import (
	"database/sql"

	"github.com/pandodao/beanpay/core"
)

type scanner interface {
	Scan(dest ...interface{}) error
}

var scanColumns = []string{
	"session_id",
	"seller_wallet_address",
	"product_id",
	"product_name",
	"amount",
	"status",
	"created_at",
	"expires_at",
	"payment_tx_hash",
	"buyer_address",
	"payment_method",
	"notified_at",
}

func scanSession(scanner scanner, session *core.PaymentSession) error {
	var (
		productID   sql.NullInt64
		productName sql.NullString
		txHash      sql.NullString
		buyer       sql.NullString
		method      sql.NullString
		notifiedAt  sql.NullTime
	)

	if err := scanner.Scan(
		&session.SessionID,
		&session.SellerWalletAddress,
		&productID,
		&productName,
		&session.Amount,
		&session.Status,
		&session.CreatedAt,
		&session.ExpiresAt,
		&txHash,
		&buyer,
		&method,
		&notifiedAt,
	); err != nil {
		return err
	}

	if productID.Valid {
		id := uint64(productID.Int64)
		session.ProductID = &id
	}

	if notifiedAt.Valid {
		t := notifiedAt.Time
		session.NotifiedAt = &t
	}

	session.ProductName = productName.String
	session.PaymentTxHash = txHash.String
	session.BuyerAddress = buyer.String
	session.PaymentMethod = core.PaymentMethod(method.String)
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
