package fetch

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/cookiejar"
	"strconv"
	"time"

	"golang.org/x/net/proxy"
)

// ErrInvalidProxyAddress is returned when the SOCKS5 proxy address is
// not in "host:port" form.
var ErrInvalidProxyAddress = errors.New("invalid proxy address: must be host:port")

// NewClient builds the HTTP client used by the fetch workers.
//
// The client carries a cookie jar because some sites require session
// cookies across consecutive page loads. It never follows redirects on
// its own: a 3xx is handed back as-is so the worker classifies it as a
// redirect outcome and the redirect target re-enters the crawl through
// the processor's admission path. Following redirects inside the client
// would fetch the target under the original host's politeness state and
// skip the host-scope check entirely.
//
// When proxyAddress is non-empty all traffic is routed through a
// SOCKS5 proxy at that address. We use golang.org/x/net/proxy directly
// for this; no proxy daemon management is involved, the proxy is
// expected to already be running.
func NewClient(timeout time.Duration, proxyAddress string) (*http.Client, error) {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
	}

	if proxyAddress != "" {
		if !validProxyAddress(proxyAddress) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidProxyAddress, proxyAddress)
		}
		dialer, err := proxy.SOCKS5("tcp", proxyAddress, nil, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
		}
		// x/net/proxy returns a context-aware dialer for SOCKS5; the
		// assertion guards against future changes in that contract.
		contextDialer, ok := dialer.(proxy.ContextDialer)
		if !ok {
			return nil, errors.New("SOCKS5 dialer does not support context dialing")
		}
		transport.DialContext = contextDialer.DialContext
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	return &http.Client{
		Transport: transport,
		Jar:       jar,
		Timeout:   timeout,
		CheckRedirect: func(_ *http.Request, _ []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}, nil
}

// validProxyAddress reports whether address is a usable "host:port".
func validProxyAddress(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" {
		return false
	}
	n, err := strconv.Atoi(port)
	return err == nil && n >= 1 && n <= 65535
}
