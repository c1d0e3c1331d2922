package client

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/habedi/dogs/pkg/apierr"
)

// CatalogClient reads breeds and images from a dog.ceo-shaped API.
type CatalogClient struct {
	BaseURL string
	http    *http.Client
}

func NewCatalogClient(baseURL string, timeout time.Duration) *CatalogClient {
	return &CatalogClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		http:    newHTTPClient(timeout),
	}
}

type breedsEnvelope struct {
	Message map[string][]string `json:"message"`
	Status  string              `json:"status"`
}

type imagesEnvelope struct {
	Message []string `json:"message"`
	Status  string   `json:"status"`
}

// Breeds returns every top-level breed name, sorted.
func (c *CatalogClient) Breeds(ctx context.Context) ([]string, error) {
	var env breedsEnvelope
	if err := do(ctx, c.http, http.MethodGet, c.BaseURL+"/breeds/list/all", nil, "", &env); err != nil {
		return nil, catalogError(err)
	}

	names := make([]string, 0, len(env.Message))
	for name := range env.Message {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// BreedImages returns count random image URLs for breed. A sub-breed is written
// as "hound-afghan".
func (c *CatalogClient) BreedImages(ctx context.Context, breed string, count int) ([]string, error) {
	path := strings.ReplaceAll(breed, "-", "/")
	urlStr := fmt.Sprintf("%s/breed/%s/images/random/%d", c.BaseURL, path, count)

	var env imagesEnvelope
	if err := do(ctx, c.http, http.MethodGet, urlStr, nil, "", &env); err != nil {
		return nil, catalogError(err)
	}
	return env.Message, nil
}

func catalogError(err error) error {
	if statusOf(err) == http.StatusNotFound {
		return apierr.New(apierr.NotFound, "Breed not found", err)
	}
	return apierr.New(apierr.ServiceUnavailable, "Dog catalogue unavailable", err)
}
