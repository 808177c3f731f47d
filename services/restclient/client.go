// Package restclient talks to the school transportation REST API.
package restclient

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"

	"github.com/trezcool/schoolbus/core"
	"github.com/trezcool/schoolbus/core/collection"
)

type (
	// Mapper translates items between the API and view shapes of a resource.
	Mapper interface {
		ToView(resource string, it collection.Item) collection.Item
		ToAPI(resource string, it collection.Item) collection.Item
	}

	Option func(*Client)

	Client struct {
		baseURL   string
		apiKey    string
		keyHeader string
		loginPath string
		session   *Session
		mapper    Mapper
		rest      *rest.Client
	}

	identityMapper struct{}
)

var _ collection.Client = (*Client)(nil)

func (identityMapper) ToView(_ string, it collection.Item) collection.Item { return it }
func (identityMapper) ToAPI(_ string, it collection.Item) collection.Item  { return it }

func WithMapper(m Mapper) Option {
	return func(c *Client) {
		if m != nil {
			c.mapper = m
		}
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.rest.HTTPClient = hc
		}
	}
}

func NewClient(conf core.APIConfig, session *Session, opts ...Option) *Client {
	if session == nil {
		session = NewSession()
	}
	keyHeader := conf.KeyHeader
	if keyHeader == "" {
		keyHeader = "x-api-key"
	}
	c := &Client{
		baseURL:   strings.TrimRight(conf.BaseURL, "/"),
		apiKey:    conf.Key,
		keyHeader: keyHeader,
		loginPath: conf.LoginPath,
		session:   session,
		mapper:    identityMapper{},
		rest:      &rest.Client{HTTPClient: &http.Client{Timeout: conf.Timeout}},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Session() *Session { return c.session }

// Login exchanges credentials for a token and stores it in the session.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	body, err := c.send(ctx, rest.Post, c.loginPath, map[string]string{
		"username": username,
		"password": password,
	})
	if err != nil {
		return "", errors.Wrap(err, "logging in")
	}

	var resp struct {
		Token       string `json:"token"`
		AccessToken string `json:"access_token"`
		Data        struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", errors.Wrap(err, "decoding login response")
	}
	token := resp.Token
	for _, t := range []string{resp.AccessToken, resp.Data.Token} {
		if token == "" {
			token = t
		}
	}
	if token == "" {
		return "", errors.New("login response carries no token")
	}
	if err := c.session.Set(token); err != nil {
		return "", err
	}
	return token, nil
}

func (c *Client) List(ctx context.Context, resource string) ([]collection.Item, error) {
	body, err := c.send(ctx, rest.Get, "/"+resource, nil)
	if err != nil {
		return nil, err
	}
	items, err := decodeItems(body)
	if err != nil {
		return nil, errors.Wrapf(err, "decoding %s", resource)
	}
	for i, it := range items {
		items[i] = c.mapper.ToView(resource, it)
	}
	return items, nil
}

func (c *Client) Create(ctx context.Context, resource string, payload collection.Item) (collection.Item, error) {
	return c.write(ctx, rest.Post, resource, "/"+resource, payload)
}

func (c *Client) Update(ctx context.Context, resource, id string, payload collection.Item) (collection.Item, error) {
	return c.write(ctx, rest.Put, resource, itemPath(resource, id), payload)
}

func (c *Client) Patch(ctx context.Context, resource, id string, fields collection.Item) (collection.Item, error) {
	return c.write(ctx, rest.Patch, resource, itemPath(resource, id), fields)
}

func (c *Client) Delete(ctx context.Context, resource, id string) error {
	_, err := c.send(ctx, rest.Delete, itemPath(resource, id), nil)
	return err
}

func (c *Client) write(ctx context.Context, method rest.Method, resource, path string, payload collection.Item) (collection.Item, error) {
	body, err := c.send(ctx, method, path, c.mapper.ToAPI(resource, payload))
	if err != nil {
		return nil, err
	}
	item, err := decodeItem(body)
	if err != nil {
		return nil, errors.Wrapf(err, "decoding %s", resource)
	}
	if item == nil {
		return nil, nil
	}
	return c.mapper.ToView(resource, item), nil
}

func itemPath(resource, id string) string {
	return "/" + resource + "/" + url.PathEscape(id)
}

func (c *Client) send(ctx context.Context, method rest.Method, path string, payload interface{}) ([]byte, error) {
	req := rest.Request{
		Method:  method,
		BaseURL: c.baseURL + path,
		Headers: map[string]string{
			"Accept": "application/json",
		},
	}
	if c.apiKey != "" {
		req.Headers[c.keyHeader] = c.apiKey
	}
	if token := c.session.Token(); token != "" {
		req.Headers["Authorization"] = "Bearer " + token
	}
	if payload != nil {
		body, err := json.Marshal(payload)
		if err != nil {
			return nil, errors.Wrapf(err, "encoding %s %s", method, path)
		}
		req.Body = body
		req.Headers["Content-Type"] = "application/json"
	}

	resp, err := c.rest.SendWithContext(ctx, req)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s", method, path)
	}
	if resp.StatusCode == http.StatusUnauthorized && path != c.loginPath {
		c.session.Invalidate()
		return nil, errors.Wrapf(ErrUnauthorized, "%s %s", method, path)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newError(resp.StatusCode, resp.Body)
	}
	return []byte(resp.Body), nil
}

// decodeItems accepts a bare array or an object wrapping it in `data`.
func decodeItems(body []byte) ([]collection.Item, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return []collection.Item{}, nil
	}
	if body[0] == '{' {
		var wrapped struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(body, &wrapped); err != nil {
			return nil, err
		}
		if len(wrapped.Data) == 0 {
			return nil, errors.New("list response has no data")
		}
		body = wrapped.Data
	}

	var items []collection.Item
	if err := unmarshal(body, &items); err != nil {
		return nil, err
	}
	if items == nil {
		items = []collection.Item{}
	}
	return items, nil
}

// decodeItem returns nil for an empty body; an object only made of a `data` object is unwrapped.
func decodeItem(body []byte) (collection.Item, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, nil
	}
	var item collection.Item
	if err := unmarshal(body, &item); err != nil {
		return nil, err
	}
	if data, ok := item["data"].(map[string]interface{}); ok && len(item) == 1 {
		item = collection.Item(data)
	}
	return item, nil
}

// unmarshal keeps numbers as json.Number so large numeric ids survive.
func unmarshal(data []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}
