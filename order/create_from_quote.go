package order

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"procureflow/lifecycle"
	"procureflow/quote"
)

// AcceptedQuoteParams carries the commercial terms read from the locked RFQ
// and quote rows inside the acceptance transaction. The coordinator owns all
// precondition checks; this insert only materialises the order.
type AcceptedQuoteParams struct {
	RFQID             string
	QuoteID           string
	BuyerID           string
	VendorID          string
	OrganizationID    *string
	ProductID         string
	Quantity          int
	UnitPrice         decimal.Decimal
	Currency          string
	DeliveryFee       *decimal.Decimal
	DeliveryAddressID string
	LeadTimeDays      int
	PaymentTerms      quote.PaymentTerms
	AcceptedAt        time.Time
}

// paymentMethodFor derives the order's payment tag from the quoted terms.
func paymentMethodFor(terms quote.PaymentTerms) PaymentMethod {
	switch terms {
	case quote.TermsPrepaid:
		return MethodPrepaid
	case quote.TermsNet30, quote.TermsNet60:
		return MethodCredit
	default:
		return MethodCOD
	}
}

// CreateFromAcceptedQuote inserts the order for a freshly accepted quote.
// It is designed to be invoked inside the caller's transaction so the
// surrounding row locks uphold the one-order-per-RFQ guarantee; the unique
// indexes on rfq_id and quote_id are the backstop.
func (r *PGRepository) CreateFromAcceptedQuote(ctx context.Context, tx pgx.Tx, params AcceptedQuoteParams) (Order, error) {
	if params.RFQID == "" || params.QuoteID == "" {
		return Order{}, fmt.Errorf("order: acceptance missing rfq or quote id")
	}
	if params.Quantity <= 0 {
		return Order{}, fmt.Errorf("order: acceptance quantity must be positive")
	}

	subtotal := params.UnitPrice.Mul(decimal.NewFromInt(int64(params.Quantity)))
	total := subtotal
	var fee any
	if params.DeliveryFee != nil {
		total = total.Add(*params.DeliveryFee)
		fee = params.DeliveryFee.String()
	}
	expected := params.AcceptedAt.UTC().AddDate(0, 0, params.LeadTimeDays)
	number := fmt.Sprintf("PO-%s", strings.ToUpper(uuid.NewString()[:8]))

	insertSQL := fmt.Sprintf(`
		INSERT INTO orders (order_number, rfq_id, quote_id, buyer_id, vendor_id, organization_id,
		                    product_id, quantity, unit_price, currency, subtotal, delivery_fee,
		                    total_amount, delivery_address_id, expected_delivery_date, payment_method, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::numeric, $10, $11::numeric, $12::numeric,
		        $13::numeric, $14, $15, $16::order_payment_method, 'pending_vendor_confirmation')
		RETURNING %s`, columns)

	rec, err := scanOrder(tx.QueryRow(ctx, insertSQL,
		number,
		params.RFQID,
		params.QuoteID,
		params.BuyerID,
		params.VendorID,
		params.OrganizationID,
		params.ProductID,
		params.Quantity,
		params.UnitPrice.String(),
		params.Currency,
		subtotal.String(),
		fee,
		total.String(),
		params.DeliveryAddressID,
		expected,
		paymentMethodFor(params.PaymentTerms),
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Order{}, fmt.Errorf("order: rfq %s already has an order: %w", params.RFQID, lifecycle.ErrConflict)
		}
		return Order{}, fmt.Errorf("order: insert from quote: %w", err)
	}
	return rec, nil
}
