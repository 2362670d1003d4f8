package payment

// CartLike is the read-only commercial context (cart or order) linked to a
// payment. It supplies the currency/amount context for gateway requests.
type CartLike struct {
	ID        string
	Reference string
	Country   string
	Total     Amount
}

// PaymentWithCart couples a payment aggregate with its commercial context for
// one dispatch attempt. The payment pointer is replaced, never mutated, when
// an update returns a newer version.
type PaymentWithCart struct {
	Payment *Payment
	Cart    *CartLike
}

// WithPayment returns a copy pointing at the updated payment version.
func (pwc *PaymentWithCart) WithPayment(p *Payment) *PaymentWithCart {
	return &PaymentWithCart{Payment: p, Cart: pwc.Cart}
}
