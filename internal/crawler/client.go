package crawler

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/proxy"
)

// clientOptions collects ClientOption values.
type clientOptions struct {
	proxyAddress string
	headers      map[string]string
}

// ClientOption configures NewHTTPClient.
type ClientOption func(*clientOptions)

// WithProxy routes all connections through a SOCKS5 proxy.
// The address is "host:port" or "socks5://[user:pass@]host:port".
// An empty address means a direct connection.
func WithProxy(address string) ClientOption {
	return func(o *clientOptions) {
		o.proxyAddress = address
	}
}

// WithHeaders adds fixed headers to every request sent by the client.
func WithHeaders(headers map[string]string) ClientOption {
	return func(o *clientOptions) {
		o.headers = headers
	}
}

// NewHTTPClient builds the HTTP client used for crawling.
// The timeout applies to each request including reading the body.
func NewHTTPClient(timeout time.Duration, opts ...ClientOption) (*http.Client, error) {
	o := &clientOptions{}
	for _, opt := range opts {
		opt(o)
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	if o.proxyAddress != "" {
		dialer, err := socksDialer(o.proxyAddress)
		if err != nil {
			return nil, err
		}
		transport.Proxy = nil
		transport.DialContext = dialer
	}

	var rt http.RoundTripper = transport
	if len(o.headers) > 0 {
		rt = &headerInjectingTransport{base: transport, headers: o.headers}
	}

	return &http.Client{
		Transport: rt,
		Timeout:   timeout,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}, nil
}

// socksDialer returns a DialContext function that connects through the proxy.
func socksDialer(address string) (func(ctx context.Context, network, addr string) (net.Conn, error), error) {
	hostPort, auth, err := parseProxyAddress(address)
	if err != nil {
		return nil, err
	}

	d, err := proxy.SOCKS5("tcp", hostPort, auth, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("create SOCKS5 dialer: %w", err)
	}

	if cd, ok := d.(proxy.ContextDialer); ok {
		return cd.DialContext, nil
	}
	return func(_ context.Context, network, addr string) (net.Conn, error) {
		return d.Dial(network, addr)
	}, nil
}

// parseProxyAddress splits a proxy address into host:port and optional credentials.
func parseProxyAddress(address string) (string, *proxy.Auth, error) {
	var auth *proxy.Auth
	hostPort := address

	if strings.Contains(address, "://") {
		u, err := url.Parse(address)
		if err != nil || u.Scheme != "socks5" {
			return "", nil, ErrInvalidProxyAddress
		}
		hostPort = u.Host
		if u.User != nil {
			password, _ := u.User.Password()
			auth = &proxy.Auth{User: u.User.Username(), Password: password}
		}
	}

	if !isValidHostPort(hostPort) {
		return "", nil, ErrInvalidProxyAddress
	}
	return hostPort, auth, nil
}

func isValidHostPort(hostPort string) bool {
	host, port, err := net.SplitHostPort(hostPort)
	if err != nil || host == "" {
		return false
	}
	n, err := strconv.Atoi(port)
	return err == nil && n >= 1 && n <= 65535
}

// headerInjectingTransport sets configured headers on every request.
type headerInjectingTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

// RoundTrip implements http.RoundTripper.
func (t *headerInjectingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	for key, value := range t.headers {
		clone.Header.Set(key, value)
	}
	return t.base.RoundTrip(clone)
}
