// Package checkout converts the current cart into an order submission and
// reconciles cart state with the outcome. The one correctness-critical rule:
// the cart is cleared at most once, and only on confirmed success. A failed
// submission leaves the cart untouched so the shopper can retry.
package checkout

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"shopfront/internal/shopapi"
	"shopfront/pkg/cart"
	"shopfront/pkg/domain"
	"shopfront/pkg/session"
)

var (
	// ErrEmptyCart means there is nothing to order.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrNotSignedIn means no session exists to attribute the order to.
	ErrNotSignedIn = errors.New("not signed in")
)

// OrderAPI is the slice of the shop API the orchestrator needs.
type OrderAPI interface {
	CreateOrder(buyerID, token, idempotencyKey string, sub shopapi.OrderSubmission) (domain.Order, error)
}

// Orchestrator places orders from the device-local cart and session.
type Orchestrator struct {
	cart     *cart.Store
	sessions *session.Store
	api      OrderAPI
}

// New wires the orchestrator.
func New(c *cart.Store, s *session.Store, api OrderAPI) *Orchestrator {
	return &Orchestrator{cart: c, sessions: s, api: api}
}

// PlaceOrder submits the current cart with the given delivery address.
// Only {productId, count} pairs are sent; the server re-prices against the
// current catalog. On success the cart is cleared; on any failure it is left
// as it was.
func (o *Orchestrator) PlaceOrder(address string) (domain.Order, error) {
	entries := o.cart.Entries()
	if len(entries) == 0 {
		return domain.Order{}, ErrEmptyCart
	}
	sess, ok := o.sessions.Current()
	if !ok {
		return domain.Order{}, ErrNotSignedIn
	}

	items := make([]shopapi.OrderItem, 0, len(entries))
	for _, e := range entries {
		items = append(items, shopapi.OrderItem{ProductID: e.ProductID, Count: e.Count})
	}
	sub := shopapi.OrderSubmission{
		Products: items,
		Amount:   o.cart.TotalPrice(),
		Address:  address,
	}

	order, err := o.api.CreateOrder(sess.User.ID, sess.Token, uuid.NewString(), sub)
	if err != nil {
		return domain.Order{}, fmt.Errorf("create order: %w", err)
	}

	// The order exists now. A failed clear must not read as a failed order,
	// or a retry would buy everything twice.
	if err := o.cart.Clear(); err != nil {
		slog.Warn("order placed but cart clear failed", "order_id", order.ID, "err", err)
	}
	return order, nil
}
