// Package shopapi calls the remote shop API over HTTP. The API reports
// failures as an {error} body; some deployments do that with a 200 status, so
// an {error} shape in any response is treated as failure regardless of
// transport status.
package shopapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"shopfront/pkg/domain"
)

// Client calls the shop API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// APIError represents a shop API error response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// NewClient constructs a shop API client.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Signin exchanges credentials for the user record and a bearer token.
func (c *Client) Signin(email, password string) (domain.User, string, error) {
	payload := map[string]string{"email": email, "password": password}
	var resp signinResponse
	if err := c.doJSON(http.MethodPost, "/signin", "", nil, payload, &resp); err != nil {
		return domain.User{}, "", err
	}
	return resp.User, resp.Token, nil
}

// Signup registers a new shopper account.
func (c *Client) Signup(name, email, password string) (domain.User, error) {
	payload := map[string]string{"name": name, "email": email, "password": password}
	var user domain.User
	if err := c.doJSON(http.MethodPost, "/signup", "", nil, payload, &user); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

// Signout invalidates the server side of the session.
func (c *Client) Signout(token string) error {
	return c.doJSON(http.MethodGet, "/signout", token, nil, nil, nil)
}

// ListProducts returns catalog items ordered by the given field
// ("sold" for best sellers, "createdAt" for new arrivals).
func (c *Client) ListProducts(sortBy string, limit int) ([]domain.Product, error) {
	path := fmt.Sprintf("/products?sortBy=%s&order=desc&limit=%d", sortBy, limit)
	var products []domain.Product
	if err := c.doJSON(http.MethodGet, path, "", nil, nil, &products); err != nil {
		return nil, err
	}
	return products, nil
}

// GetProduct fetches a single catalog item.
func (c *Client) GetProduct(id string) (domain.Product, error) {
	var product domain.Product
	if err := c.doJSON(http.MethodGet, "/product/"+id, "", nil, nil, &product); err != nil {
		return domain.Product{}, err
	}
	return product, nil
}

// RelatedProducts fetches items from the same category as the given product.
func (c *Client) RelatedProducts(id string) ([]domain.Product, error) {
	var products []domain.Product
	if err := c.doJSON(http.MethodGet, "/products/related/"+id, "", nil, nil, &products); err != nil {
		return nil, err
	}
	return products, nil
}

// SearchFilters narrows a product search.
type SearchFilters struct {
	Category string  `json:"category,omitempty"`
	PriceMin float64 `json:"priceMin,omitempty"`
	PriceMax float64 `json:"priceMax,omitempty"`
	Search   string  `json:"search,omitempty"`
}

// SearchProducts runs a filtered search over the catalog.
func (c *Client) SearchProducts(filters SearchFilters, limit, skip int) ([]domain.Product, error) {
	payload := map[string]any{"filters": filters, "limit": limit, "skip": skip}
	var resp searchResponse
	if err := c.doJSON(http.MethodPost, "/products/by/search", "", nil, payload, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// ListCategories returns all categories.
func (c *Client) ListCategories() ([]domain.Category, error) {
	var categories []domain.Category
	if err := c.doJSON(http.MethodGet, "/categories", "", nil, nil, &categories); err != nil {
		return nil, err
	}
	return categories, nil
}

// CreateCategory creates a category (admin).
func (c *Client) CreateCategory(userID, token, name string) (domain.Category, error) {
	payload := map[string]string{"name": name}
	var category domain.Category
	if err := c.doJSON(http.MethodPost, "/category/create/"+userID, token, nil, payload, &category); err != nil {
		return domain.Category{}, err
	}
	return category, nil
}

// UpdateCategory renames a category (admin).
func (c *Client) UpdateCategory(userID, token, categoryID, name string) (domain.Category, error) {
	path := fmt.Sprintf("/category/%s/%s", categoryID, userID)
	payload := map[string]string{"name": name}
	var category domain.Category
	if err := c.doJSON(http.MethodPut, path, token, nil, payload, &category); err != nil {
		return domain.Category{}, err
	}
	return category, nil
}

// DeleteCategory removes a category (admin).
func (c *Client) DeleteCategory(userID, token, categoryID string) error {
	path := fmt.Sprintf("/category/%s/%s", categoryID, userID)
	return c.doJSON(http.MethodDelete, path, token, nil, nil, nil)
}

// CreateProduct creates a catalog item (admin).
func (c *Client) CreateProduct(userID, token string, p domain.Product) (domain.Product, error) {
	var created domain.Product
	if err := c.doJSON(http.MethodPost, "/product/create/"+userID, token, nil, p, &created); err != nil {
		return domain.Product{}, err
	}
	return created, nil
}

// UpdateProduct replaces a catalog item (admin).
func (c *Client) UpdateProduct(userID, token, productID string, p domain.Product) (domain.Product, error) {
	path := fmt.Sprintf("/product/%s/%s", productID, userID)
	var updated domain.Product
	if err := c.doJSON(http.MethodPut, path, token, nil, p, &updated); err != nil {
		return domain.Product{}, err
	}
	return updated, nil
}

// DeleteProduct removes a catalog item (admin).
func (c *Client) DeleteProduct(userID, token, productID string) error {
	path := fmt.Sprintf("/product/%s/%s", productID, userID)
	return c.doJSON(http.MethodDelete, path, token, nil, nil, nil)
}

// ListOrders returns all orders (admin).
func (c *Client) ListOrders(userID, token string) ([]domain.Order, error) {
	var orders []domain.Order
	if err := c.doJSON(http.MethodGet, "/order/list/"+userID, token, nil, nil, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// OrderStatusValues returns the set of statuses an order may move to (admin).
func (c *Client) OrderStatusValues(userID, token string) ([]string, error) {
	var values []string
	if err := c.doJSON(http.MethodGet, "/order/status-values/"+userID, token, nil, nil, &values); err != nil {
		return nil, err
	}
	return values, nil
}

// UpdateOrderStatus moves an order to a new status (admin).
func (c *Client) UpdateOrderStatus(userID, token, orderID, status string) error {
	path := fmt.Sprintf("/order/%s/status/%s", orderID, userID)
	payload := map[string]string{"status": status, "orderId": orderID}
	return c.doJSON(http.MethodPut, path, token, nil, payload, nil)
}

// PurchaseHistory returns the user's own orders.
func (c *Client) PurchaseHistory(userID, token string) ([]domain.Order, error) {
	var orders []domain.Order
	if err := c.doJSON(http.MethodGet, "/orders/by/user/"+userID, token, nil, nil, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// OrderItem is one {productId, count} pair of an order submission. Product
// snapshot fields are not resent; the server re-prices against the current
// catalog.
type OrderItem struct {
	ProductID string `json:"productId"`
	Count     int    `json:"count"`
}

// OrderSubmission is the payload for order creation.
type OrderSubmission struct {
	Products []OrderItem `json:"products"`
	Amount   float64     `json:"amount"`
	Address  string      `json:"address"`
}

// CreateOrder submits an order for the buyer. The idempotency key makes a
// retried submission safe against duplicate orders.
func (c *Client) CreateOrder(buyerID, token, idempotencyKey string, sub OrderSubmission) (domain.Order, error) {
	headers := map[string]string{}
	if idempotencyKey != "" {
		headers["Idempotency-Key"] = idempotencyKey
	}
	var order domain.Order
	if err := c.doJSON(http.MethodPost, "/order/create/"+buyerID, token, headers, sub, &order); err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

func (c *Client) doJSON(method, path, token string, headers map[string]string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	var probe struct {
		Error string `json:"error"`
	}
	_ = json.Unmarshal(data, &probe)
	if resp.StatusCode >= 400 || probe.Error != "" {
		msg := probe.Error
		if msg == "" {
			msg = resp.Status
		}
		status := resp.StatusCode
		if status < 400 {
			// Error body under a 2xx transport status still counts as failure.
			status = http.StatusBadGateway
		}
		return &APIError{Status: status, Message: msg}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

type signinResponse struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

type searchResponse struct {
	Size int              `json:"size"`
	Data []domain.Product `json:"data"`
}
