// Package server exposes the storefront routes on the loopback interface.
// Handlers return JSON view models; rendering belongs to whatever front end
// consumes them. Guarded routes answer with a 303 redirect when the route
// guard says so.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"shopfront/internal/checkout"
	"shopfront/internal/shopapi"
	"shopfront/internal/util"
	"shopfront/pkg/cart"
	"shopfront/pkg/domain"
	"shopfront/pkg/guard"
	"shopfront/pkg/session"
)

const homeShelfSize = 6

// Config wires required dependencies for the HTTP server.
type Config struct {
	API        *shopapi.Client
	Cart       *cart.Store
	Sessions   *session.Store
	Checkout   *checkout.Orchestrator
	SigninPath string
	HomePath   string
}

// Server exposes the storefront routes.
type Server struct {
	api        *shopapi.Client
	cart       *cart.Store
	sessions   *session.Store
	checkout   *checkout.Orchestrator
	private    *guard.Guard
	admin      *guard.Guard
	mux        *http.ServeMux
	signinPath string
	homePath   string

	// badgeCount tracks the cart total for the navigation badge. It is fed
	// by a cart subscription, independent of the cart view handler.
	badgeCount atomic.Int64
}

// New constructs the server with routes configured.
func New(cfg Config) *Server {
	signinPath := cfg.SigninPath
	if signinPath == "" {
		signinPath = "/signin"
	}
	homePath := cfg.HomePath
	if homePath == "" {
		homePath = "/"
	}
	s := &Server{
		api:        cfg.API,
		cart:       cfg.Cart,
		sessions:   cfg.Sessions,
		checkout:   cfg.Checkout,
		private:    guard.Private(cfg.Sessions, signinPath),
		admin:      guard.AdminOnly(cfg.Sessions, signinPath, homePath),
		mux:        http.NewServeMux(),
		signinPath: signinPath,
		homePath:   homePath,
	}
	s.badgeCount.Store(int64(cfg.Cart.TotalCount()))
	cfg.Cart.Subscribe(func() {
		s.badgeCount.Store(int64(s.cart.TotalCount()))
	})
	s.routes()
	return s
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithSecurityHeaders(util.WithCORS(util.WithRequestID(util.WithRequestLog(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	// public storefront
	s.mux.HandleFunc("/", s.handleHome)
	s.mux.HandleFunc("/shop", s.handleShop)
	s.mux.HandleFunc("/shop/search", s.handleShopSearch)
	s.mux.HandleFunc("/product/", s.handleProductByID)
	s.mux.HandleFunc("/nav", s.handleNav)

	// auth
	s.mux.HandleFunc("/signin", s.handleSignin)
	s.mux.HandleFunc("/signup", s.handleSignup)
	s.mux.HandleFunc("/signout", s.handleSignout)

	// cart & checkout
	s.mux.HandleFunc("/cart", s.handleCart)
	s.mux.HandleFunc("/cart/items", s.handleCartItems)
	s.mux.HandleFunc("/cart/items/", s.handleCartItemByID)
	s.mux.HandleFunc("/checkout", s.handleCheckout)

	// private
	s.mux.Handle("/user/dashboard", s.guarded(s.private, s.handleUserDashboard))
	s.mux.Handle("/profile/", s.guarded(s.private, s.handleProfile))

	// admin
	s.mux.Handle("/admin/dashboard", s.guarded(s.admin, s.handleAdminDashboard))
	s.mux.Handle("/admin/orders", s.guarded(s.admin, s.handleAdminOrders))
	s.mux.Handle("/admin/orders/", s.guarded(s.admin, s.handleAdminOrderByID))
	s.mux.Handle("/admin/products", s.guarded(s.admin, s.handleAdminProducts))
	s.mux.Handle("/admin/products/", s.guarded(s.admin, s.handleAdminProductByID))
	s.mux.Handle("/admin/categories/", s.guarded(s.admin, s.handleAdminCategoryByID))
	s.mux.Handle("/create/product", s.guarded(s.admin, s.handleCreateProduct))
	s.mux.Handle("/create/category", s.guarded(s.admin, s.handleCreateCategory))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// guard wrapper
type viewHandler func(http.ResponseWriter, *http.Request, session.Session)

func (s *Server) guarded(g *guard.Guard, next viewHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if d := g.Decide(r.URL.Path); d.Action == guard.Redirect {
			s.audit(r, "guard.decide", "redirect", "target", d.Target)
			http.Redirect(w, r, d.Target, http.StatusSeeOther)
			return
		}
		sess, _ := s.sessions.Current()
		next(w, r, sess)
	})
}

// public views

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	var bestSellers, newArrivals []domain.Product
	g, _ := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		bestSellers, err = s.api.ListProducts("sold", homeShelfSize)
		return err
	})
	g.Go(func() error {
		var err error
		newArrivals, err = s.api.ListProducts("createdAt", homeShelfSize)
		return err
	})
	if err := g.Wait(); err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"bestSellers": bestSellers,
		"newArrivals": newArrivals,
		"nav":         s.navView(),
	})
}

func (s *Server) handleShop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	var products []domain.Product
	var categories []domain.Category
	g, _ := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		products, err = s.api.ListProducts("createdAt", 100)
		return err
	})
	g.Go(func() error {
		var err error
		categories, err = s.api.ListCategories()
		return err
	})
	if err := g.Wait(); err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"products":   products,
		"categories": categories,
		"nav":        s.navView(),
	})
}

func (s *Server) handleShopSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req searchRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	limit := req.Limit
	if limit <= 0 {
		limit = 100
	}
	products, err := s.api.SearchProducts(req.Filters, limit, req.Skip)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"products": products,
		"count":    len(products),
	})
}

func (s *Server) handleProductByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/product/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	product, err := s.api.GetProduct(id)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	related, err := s.api.RelatedProducts(id)
	if err != nil {
		// The product page still renders without its related shelf.
		slog.Warn("related products unavailable", "product_id", id, "err", err)
		related = nil
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"product": product,
		"related": related,
	})
}

func (s *Server) handleNav(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, s.navView())
}

// navView builds the navigation chrome view model: which links show depends
// on session state, the badge comes from the cart subscription.
func (s *Server) navView() map[string]any {
	view := map[string]any{
		"cartBadge": s.badgeCount.Load(),
	}
	sess, ok := s.sessions.Current()
	switch {
	case !ok:
		view["links"] = []string{"/", "/shop", "/cart", s.signinPath, "/signup"}
	case sess.User.Role == domain.RoleAdmin:
		view["links"] = []string{"/", "/shop", "/cart", "/admin/dashboard", "/signout"}
		view["user"] = sess.User
	default:
		view["links"] = []string{"/", "/shop", "/cart", "/user/dashboard", "/signout"}
		view["user"] = sess.User
	}
	return view
}

// auth handlers

func (s *Server) handleSignin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req signinRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	user, token, err := s.api.Signin(req.Email, req.Password)
	if err != nil {
		s.audit(r, "signin", "fail", "reason", err.Error())
		writeAPIError(w, err)
		return
	}
	if err := s.sessions.SignIn(user, token); err != nil {
		s.audit(r, "signin", "fail", "reason", "persist")
		writeError(w, http.StatusInternalServerError, "could not persist session")
		return
	}
	s.audit(r, "signin", "success", "user_id", user.ID)
	redirectTo := s.homePath
	if next := r.URL.Query().Get("next"); strings.HasPrefix(next, "/") {
		redirectTo = next
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user":       user,
		"redirectTo": redirectTo,
	})
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req signupRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	user, err := s.api.Signup(req.Name, req.Email, req.Password)
	if err != nil {
		s.audit(r, "signup", "fail", "reason", err.Error())
		writeAPIError(w, err)
		return
	}
	s.audit(r, "signup", "success", "user_id", user.ID)
	writeJSON(w, http.StatusCreated, map[string]any{
		"user":       user,
		"redirectTo": s.signinPath,
	})
}

func (s *Server) handleSignout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	sess, ok := s.sessions.Current()
	if ok {
		// Best effort: the device session clears regardless of the remote
		// outcome.
		if err := s.api.Signout(sess.Token); err != nil {
			slog.Warn("remote signout failed", "err", err)
		}
	}
	redirectTo := ""
	err := s.sessions.SignOut(func() {
		redirectTo = s.homePath
	})
	if err != nil {
		s.audit(r, "signout", "fail", "reason", err.Error())
		writeError(w, http.StatusInternalServerError, "could not clear session")
		return
	}
	s.audit(r, "signout", "success")
	writeJSON(w, http.StatusOK, map[string]string{"redirectTo": redirectTo})
}

// cart handlers

func (s *Server) handleCart(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.writeCartView(w)
	case http.MethodDelete:
		if err := s.cart.Clear(); err != nil {
			writeError(w, http.StatusInternalServerError, "could not persist cart")
			return
		}
		s.writeCartView(w)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleCartItems(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req addToCartRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Product.ID == "" {
		writeError(w, http.StatusBadRequest, "product.id is required")
		return
	}
	count := req.Count
	if count == 0 {
		count = 1
	}
	if err := s.cart.Add(req.Product, count); err != nil {
		writeError(w, http.StatusInternalServerError, "could not persist cart")
		return
	}
	s.writeCartView(w)
}

func (s *Server) handleCartItemByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/cart/items/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodPatch:
		var req setCountRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if err := s.cart.SetCount(id, req.Count); err != nil {
			writeError(w, http.StatusInternalServerError, "could not persist cart")
			return
		}
	case http.MethodDelete:
		if err := s.cart.Remove(id); err != nil {
			writeError(w, http.StatusInternalServerError, "could not persist cart")
			return
		}
	default:
		methodNotAllowed(w)
		return
	}
	s.writeCartView(w)
}

func (s *Server) writeCartView(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]any{
		"items":      s.cart.Entries(),
		"totalCount": s.cart.TotalCount(),
		"totalPrice": s.cart.TotalPrice(),
	})
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req checkoutRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Address) == "" {
		writeError(w, http.StatusBadRequest, "address is required")
		return
	}
	order, err := s.checkout.PlaceOrder(req.Address)
	if err != nil {
		s.audit(r, "checkout", "fail", "reason", err.Error())
		switch {
		case errors.Is(err, checkout.ErrEmptyCart):
			writeError(w, http.StatusBadRequest, "cart is empty")
		case errors.Is(err, checkout.ErrNotSignedIn):
			writeError(w, http.StatusUnauthorized, "sign in to place an order")
		default:
			writeAPIError(w, err)
		}
		return
	}
	s.audit(r, "checkout", "success", "order_id", order.ID)
	writeJSON(w, http.StatusCreated, order)
}

// private views

func (s *Server) handleUserDashboard(w http.ResponseWriter, r *http.Request, sess session.Session) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	history, err := s.api.PurchaseHistory(sess.User.ID, sess.Token)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user":    sess.User,
		"history": history,
	})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request, sess session.Session) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/profile/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	// A shopper only sees their own profile.
	if id != sess.User.ID {
		http.Redirect(w, r, s.homePath, http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": sess.User})
}

// admin views

func (s *Server) handleAdminDashboard(w http.ResponseWriter, r *http.Request, sess session.Session) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user": sess.User,
		"links": []string{
			"/create/category",
			"/create/product",
			"/admin/orders",
			"/admin/products",
		},
	})
}

func (s *Server) handleAdminOrders(w http.ResponseWriter, r *http.Request, sess session.Session) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	var orders []domain.Order
	var statusValues []string
	g, _ := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		orders, err = s.api.ListOrders(sess.User.ID, sess.Token)
		return err
	})
	g.Go(func() error {
		var err error
		statusValues, err = s.api.OrderStatusValues(sess.User.ID, sess.Token)
		return err
	})
	if err := g.Wait(); err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"orders":       orders,
		"statusValues": statusValues,
		"count":        len(orders),
	})
}

// /admin/orders/{id}/status
func (s *Server) handleAdminOrderByID(w http.ResponseWriter, r *http.Request, sess session.Session) {
	path := strings.TrimPrefix(r.URL.Path, "/admin/orders/")
	parts := strings.SplitN(path, "/", 2)
	if parts[0] == "" || len(parts) != 2 || parts[1] != "status" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPut {
		methodNotAllowed(w)
		return
	}
	var req orderStatusRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Status == "" {
		writeError(w, http.StatusBadRequest, "status is required")
		return
	}
	if err := s.api.UpdateOrderStatus(sess.User.ID, sess.Token, parts[0], req.Status); err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (s *Server) handleAdminProducts(w http.ResponseWriter, r *http.Request, _ session.Session) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	products, err := s.api.ListProducts("createdAt", 100)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": products,
		"count": len(products),
	})
}

// /admin/products/{id}
func (s *Server) handleAdminProductByID(w http.ResponseWriter, r *http.Request, sess session.Session) {
	id := strings.TrimPrefix(r.URL.Path, "/admin/products/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodPut:
		var p domain.Product
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&p); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		updated, err := s.api.UpdateProduct(sess.User.ID, sess.Token, id, p)
		if err != nil {
			writeAPIError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	case http.MethodDelete:
		if err := s.api.DeleteProduct(sess.User.ID, sess.Token, id); err != nil {
			writeAPIError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		methodNotAllowed(w)
	}
}

// /admin/categories/{id}
func (s *Server) handleAdminCategoryByID(w http.ResponseWriter, r *http.Request, sess session.Session) {
	id := strings.TrimPrefix(r.URL.Path, "/admin/categories/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodPut:
		var req createCategoryRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if strings.TrimSpace(req.Name) == "" {
			writeError(w, http.StatusBadRequest, "name is required")
			return
		}
		updated, err := s.api.UpdateCategory(sess.User.ID, sess.Token, id, req.Name)
		if err != nil {
			writeAPIError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	case http.MethodDelete:
		if err := s.api.DeleteCategory(sess.User.ID, sess.Token, id); err != nil {
			writeAPIError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleCreateProduct(w http.ResponseWriter, r *http.Request, sess session.Session) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var p domain.Product
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if p.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	created, err := s.api.CreateProduct(sess.User.ID, sess.Token, p)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request, sess session.Session) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req createCategoryRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	created, err := s.api.CreateCategory(sess.User.ID, sess.Token, req.Name)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// request/response shapes

type signinRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type addToCartRequest struct {
	Product domain.Product `json:"product"`
	Count   int            `json:"count"`
}

type setCountRequest struct {
	Count int `json:"count"`
}

type searchRequest struct {
	Filters shopapi.SearchFilters `json:"filters"`
	Limit   int                   `json:"limit"`
	Skip    int                   `json:"skip"`
}

type checkoutRequest struct {
	Address string `json:"address"`
}

type orderStatusRequest struct {
	Status string `json:"status"`
}

type createCategoryRequest struct {
	Name string `json:"name"`
}

// helpers

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeAPIError(w http.ResponseWriter, err error) {
	var apiErr *shopapi.APIError
	if errors.As(err, &apiErr) {
		writeError(w, apiErr.Status, apiErr.Message)
		return
	}
	writeError(w, http.StatusBadGateway, "shop API unavailable")
}

func (s *Server) audit(r *http.Request, event, outcome string, attrs ...any) {
	logAttrs := []any{
		"event", event,
		"outcome", outcome,
		"path", r.URL.Path,
		"method", r.Method,
	}
	logAttrs = append(logAttrs, attrs...)
	if outcome == "success" {
		slog.Info("storefront_event", logAttrs...)
		return
	}
	slog.Warn("storefront_event", logAttrs...)
}
