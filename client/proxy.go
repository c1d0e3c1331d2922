package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/habedi/dogs/pkg/apierr"
)

// ProxyClient reads the catalogue through the dogs server.
type ProxyClient struct {
	BaseURL string
	http    *http.Client
}

func NewProxyClient(baseURL string, timeout time.Duration) *ProxyClient {
	return &ProxyClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		http:    newHTTPClient(timeout),
	}
}

func (c *ProxyClient) Breeds(ctx context.Context) (*BreedList, error) {
	var list BreedList
	if err := do(ctx, c.http, http.MethodGet, c.BaseURL+"/breeds", nil, "", &list); err != nil {
		return nil, proxyError(err)
	}
	return &list, nil
}

func (c *ProxyClient) BreedImages(ctx context.Context, breed string, count int) (*BreedImages, error) {
	urlStr := fmt.Sprintf("%s/breeds/%s/images?count=%d", c.BaseURL, url.PathEscape(breed), count)

	var images BreedImages
	if err := do(ctx, c.http, http.MethodGet, urlStr, nil, "", &images); err != nil {
		return nil, proxyError(err)
	}
	return &images, nil
}

func proxyError(err error) error {
	switch statusOf(err) {
	case http.StatusNotFound:
		return apierr.New(apierr.NotFound, "Breed not found", err)
	case http.StatusBadRequest:
		return apierr.New(apierr.Validation, "Invalid request", err)
	default:
		return apierr.New(apierr.ServiceUnavailable, "Dogs server unavailable", err)
	}
}
