package pool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/screa/duco-miner/pkg/types"
)

// Locator resolves the address of a pool node to connect to
type Locator interface {
	Locate(ctx context.Context) (string, error)
}

// Info is the discovery endpoint's response body
type Info struct {
	IP   string `json:"ip"`
	Port int    `json:"port"`
	Name string `json:"name,omitempty"`
}

// Address joins ip and port into a dialable host:port
func (i Info) Address() string {
	return net.JoinHostPort(i.IP, strconv.Itoa(i.Port))
}

// HTTPLocator asks a discovery endpoint which pool node to use
type HTTPLocator struct {
	URL    string
	Client *http.Client
}

// NewHTTPLocator creates a locator with its own client timeout
func NewHTTPLocator(url string, timeout time.Duration) *HTTPLocator {
	return &HTTPLocator{
		URL:    url,
		Client: &http.Client{Timeout: timeout},
	}
}

// Locate performs a GET against the discovery endpoint
func (l *HTTPLocator) Locate(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.URL, nil)
	if err != nil {
		return "", types.NewError(types.KindDiscovery, "build request", err)
	}
	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", types.NewError(types.KindDiscovery, "get pool", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", types.NewError(types.KindDiscovery, "get pool", fmt.Errorf("unexpected status %s", resp.Status))
	}

	var info Info
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return "", types.NewError(types.KindDiscovery, "parse pool json", err)
	}
	if info.IP == "" || info.Port <= 0 {
		return "", types.NewError(types.KindDiscovery, "parse pool json", errors.New("missing ip or port"))
	}
	return info.Address(), nil
}

// StaticLocator always returns the same address
type StaticLocator string

// Locate returns the configured address
func (s StaticLocator) Locate(ctx context.Context) (string, error) {
	if s == "" {
		return "", types.NewError(types.KindDiscovery, "static pool", errors.New("empty address"))
	}
	return string(s), nil
}
