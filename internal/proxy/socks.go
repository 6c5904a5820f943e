// Package proxy builds HTTP clients for the remote speech services.
package proxy

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/proxy"
)

// NewSocksClient routes every request through the SOCKS5 proxy at socksAddr.
func NewSocksClient(socksAddr string, timeout time.Duration) (*http.Client, error) {
	dialer, err := proxy.SOCKS5("tcp", socksAddr, nil, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("socks5 %s: %w", socksAddr, err)
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	dial := func(ctx context.Context, network, addr string) (net.Conn, error) {
		if cd, ok := dialer.(proxy.ContextDialer); ok {
			return cd.DialContext(ctx, network, addr)
		}
		return dialer.Dial(network, addr)
	}

	return &http.Client{
		Transport: &http.Transport{DialContext: dial},
		Timeout:   timeout,
	}, nil
}
