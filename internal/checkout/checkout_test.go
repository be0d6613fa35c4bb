package checkout

import (
	"errors"
	"net/http"
	"reflect"
	"testing"

	"shopfront/internal/shopapi"
	"shopfront/pkg/cart"
	"shopfront/pkg/domain"
	"shopfront/pkg/localdata"
	"shopfront/pkg/session"
)

type fakeOrderAPI struct {
	fail    error
	calls   int
	keys    []string
	lastSub shopapi.OrderSubmission
	buyerID string
	token   string
}

func (f *fakeOrderAPI) CreateOrder(buyerID, token, key string, sub shopapi.OrderSubmission) (domain.Order, error) {
	f.calls++
	f.keys = append(f.keys, key)
	f.buyerID = buyerID
	f.token = token
	f.lastSub = sub
	if f.fail != nil {
		return domain.Order{}, f.fail
	}
	return domain.Order{ID: "o1", Amount: sub.Amount, Address: sub.Address}, nil
}

func newFixture(t *testing.T) (*cart.Store, *session.Store) {
	t.Helper()
	c, err := cart.New(localdata.NewMemoryBackend())
	if err != nil {
		t.Fatalf("new cart: %v", err)
	}
	s := session.New(localdata.NewMemoryBackend())
	if err := s.SignIn(domain.User{ID: "u1", Role: domain.RoleStandard}, "tok-1"); err != nil {
		t.Fatalf("sign in: %v", err)
	}
	return c, s
}

func fill(t *testing.T, c *cart.Store) {
	t.Helper()
	if err := c.Add(domain.Product{ID: "p1", Price: 10, Stock: 5}, 2); err != nil {
		t.Fatalf("add p1: %v", err)
	}
	if err := c.Add(domain.Product{ID: "p2", Price: 3, Stock: 9}, 1); err != nil {
		t.Fatalf("add p2: %v", err)
	}
}

func TestPlaceOrderSuccessClearsCart(t *testing.T) {
	c, s := newFixture(t)
	fill(t, c)
	api := &fakeOrderAPI{}
	o := New(c, s, api)

	order, err := o.PlaceOrder("1 Main St")
	if err != nil {
		t.Fatalf("place order: %v", err)
	}
	if order.ID != "o1" {
		t.Fatalf("unexpected order: %+v", order)
	}
	if len(c.Entries()) != 0 {
		t.Fatalf("cart should be empty after confirmed success")
	}
	if api.buyerID != "u1" || api.token != "tok-1" {
		t.Fatalf("identity not forwarded: buyer=%q token=%q", api.buyerID, api.token)
	}
	want := shopapi.OrderSubmission{
		Products: []shopapi.OrderItem{{ProductID: "p1", Count: 2}, {ProductID: "p2", Count: 1}},
		Amount:   23,
		Address:  "1 Main St",
	}
	if !reflect.DeepEqual(api.lastSub, want) {
		t.Fatalf("unexpected submission:\n got %+v\nwant %+v", api.lastSub, want)
	}
	if len(api.keys) != 1 || api.keys[0] == "" {
		t.Fatalf("expected one non-empty idempotency key, got %v", api.keys)
	}
}

func TestPlaceOrderFailureLeavesCartUntouched(t *testing.T) {
	c, s := newFixture(t)
	fill(t, c)
	before := c.Entries()

	api := &fakeOrderAPI{fail: &shopapi.APIError{Status: http.StatusBadGateway, Message: "payment declined"}}
	o := New(c, s, api)

	if _, err := o.PlaceOrder("1 Main St"); err == nil {
		t.Fatalf("expected failure")
	}
	after := c.Entries()
	if !reflect.DeepEqual(before, after) {
		t.Fatalf("cart changed on failed submission:\nbefore %+v\nafter  %+v", before, after)
	}
}

func TestPlaceOrderEmptyCart(t *testing.T) {
	c, s := newFixture(t)
	o := New(c, s, &fakeOrderAPI{})
	if _, err := o.PlaceOrder("1 Main St"); !errors.Is(err, ErrEmptyCart) {
		t.Fatalf("expected ErrEmptyCart, got %v", err)
	}
}

func TestPlaceOrderRequiresSession(t *testing.T) {
	c, _ := newFixture(t)
	fill(t, c)
	anon := session.New(localdata.NewMemoryBackend())
	api := &fakeOrderAPI{}
	o := New(c, anon, api)

	if _, err := o.PlaceOrder("1 Main St"); !errors.Is(err, ErrNotSignedIn) {
		t.Fatalf("expected ErrNotSignedIn, got %v", err)
	}
	if api.calls != 0 {
		t.Fatalf("no remote call should happen without a session")
	}
	if len(c.Entries()) == 0 {
		t.Fatalf("cart must survive a refused checkout")
	}
}

func TestEachAttemptGetsFreshIdempotencyKey(t *testing.T) {
	c, s := newFixture(t)
	fill(t, c)
	api := &fakeOrderAPI{fail: errors.New("down")}
	o := New(c, s, api)

	_, _ = o.PlaceOrder("1 Main St")
	_, _ = o.PlaceOrder("1 Main St")
	if len(api.keys) != 2 || api.keys[0] == api.keys[1] {
		t.Fatalf("expected distinct keys per attempt, got %v", api.keys)
	}
}
