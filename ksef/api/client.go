package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-resty/resty/v2"

	"github.com/alapierre/go-ksef-gateway/ksef"
	"github.com/alapierre/go-ksef-gateway/ksef/util"
)

// Client to niskopoziomowy transport HTTP. Rozróżnia dwa rodzaje porażek:
// brak odpowiedzi serwera (*ksef.NetworkError) oraz jawną odmowę z kodem
// spoza 2xx (*ksef.APIError) — polityka ponawiania zależy od tego rozróżnienia.
type Client interface {
	GetJson(ctx context.Context, endpoint, token string, result interface{}) error
	GetRaw(ctx context.Context, endpoint, token, accept string) ([]byte, error)
	PostJson(ctx context.Context, endpoint, token string, body, result interface{}) error
	PostJsonNoAuth(ctx context.Context, endpoint string, body, result interface{}) error
}

type client struct {
	rest    *resty.Client
	baseURL string
}

func New(environment ksef.Environment) Client {
	return NewWithBaseURL(environment.BaseURL())
}

// NewWithBaseURL pozwala wskazać dowolny adres bazowy, np. serwer testowy.
func NewWithBaseURL(baseURL string) Client {
	restyClient := resty.New()
	return &client{rest: restyClient, baseURL: baseURL}
}

func (c *client) GetJson(ctx context.Context, endpoint, token string, result interface{}) error {

	r := c.request(ctx, token)

	resp, err := r.
		SetResult(result).
		Get(c.baseURL + endpoint)

	printTraceInfo(endpoint, c, err, resp)
	return checkError(endpoint, resp, err)
}

func (c *client) GetRaw(ctx context.Context, endpoint, token, accept string) ([]byte, error) {

	r := c.request(ctx, token)
	if accept != "" {
		r.SetHeader("Accept", accept)
	}

	resp, err := r.Get(c.baseURL + endpoint)

	printTraceInfo(endpoint, c, err, resp)
	if err := checkError(endpoint, resp, err); err != nil {
		return nil, err
	}
	return resp.Body(), nil
}

func (c *client) PostJson(ctx context.Context, endpoint, token string, body, result interface{}) error {

	r := c.request(ctx, token)
	if body != nil {
		r.SetBody(body)
	}
	if result != nil {
		r.SetResult(result)
	}

	resp, err := r.Post(c.baseURL + endpoint)

	printTraceInfo(endpoint, c, err, resp)
	return checkError(endpoint, resp, err)
}

func (c *client) PostJsonNoAuth(ctx context.Context, endpoint string, body, result interface{}) error {
	return c.PostJson(ctx, endpoint, "", body, result)
}

func (c *client) request(ctx context.Context, token string) *resty.Request {
	r := c.rest.R().SetContext(ctx)
	if util.HttpTraceEnabled() {
		r.EnableTrace()
	}
	if token != "" {
		r.SetAuthToken(token)
	}
	return r
}

func checkError(endpoint string, resp *resty.Response, err error) error {
	if err != nil {
		// resty zwraca błąd bez odpowiedzi tylko przy awarii transportu
		return &ksef.NetworkError{Endpoint: endpoint, Err: err}
	}

	if resp.IsError() {
		body := resp.String()
		var errorMap map[string]any
		if body != "" {
			_ = json.Unmarshal([]byte(body), &errorMap)
		}

		return &ksef.APIError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode(),
			Body:       body,
			Details:    errorMap,
		}
	}
	return nil
}

func printTraceInfo(endpoint string, c *client, err error, resp *resty.Response) {

	if !util.HttpTraceEnabled() || resp == nil {
		return
	}

	fmt.Println("Response Info:")
	fmt.Println("  URL        :", c.baseURL+endpoint)
	fmt.Println("  Error      :", err)
	fmt.Println("  Status Code:", resp.StatusCode())
	fmt.Println("  Status     :", resp.Status())
	fmt.Println("  Time       :", resp.Time())
	fmt.Println("  Received At:", resp.ReceivedAt())
	fmt.Println("  Body       :\n", resp)
	fmt.Println()
}
