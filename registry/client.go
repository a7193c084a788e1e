package registry

import (
	"context"
	"strings"

	"github.com/starius/api2"
)

type Client struct {
	api2client *api2.Client
}

var _ Service = (*Client)(nil)

func NewClient(baseURL string, opts ...api2.Option) (*Client, error) {
	if !strings.HasPrefix(baseURL, "https://") && !strings.HasPrefix(baseURL, "http://") {
		baseURL = "https://" + baseURL
	}
	routes := GetRoutes(nil)
	api2client := api2.NewClient(routes, strings.TrimSuffix(baseURL, "/"), opts...)
	return &Client{api2client: api2client}, nil
}

func (c *Client) Close() error {
	return c.api2client.Close()
}

func (c *Client) CreateToken(ctx context.Context, req *CreateTokenRequest) (res *CreateTokenResponse, err error) {
	res = &CreateTokenResponse{}
	err = c.api2client.Call(ctx, res, req)
	if err != nil {
		return nil, err
	}
	return
}

func (c *Client) ListTokens(ctx context.Context, req *ListTokensRequest) (res *ListTokensResponse, err error) {
	res = &ListTokensResponse{}
	err = c.api2client.Call(ctx, res, req)
	if err != nil {
		return nil, err
	}
	return
}
