package tlsutil

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/rs/dnscache"
	"github.com/rs/zerolog/log"
)

const defaultDNSCacheTTL = 5 * time.Minute

type dialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// cachingDialer resolves hosts through a DNS cache and dials the returned addresses in
// order until one connects.
type cachingDialer struct {
	resolver *dnscache.Resolver
	dial     dialFunc
}

var (
	sharedDialer     *cachingDialer
	sharedDialerOnce sync.Once

	dnsCacheMu  sync.Mutex
	dnsCacheTTL = defaultDNSCacheTTL
)

// SetDNSCacheTTL sets how often cached lookups are refreshed. Only calls made before
// the first dial take effect.
func SetDNSCacheTTL(ttl time.Duration) {
	if ttl <= 0 {
		ttl = defaultDNSCacheTTL
	}
	dnsCacheMu.Lock()
	dnsCacheTTL = ttl
	dnsCacheMu.Unlock()

	log.Info().Dur("ttl", ttl).Msg("DNS cache TTL configured")
}

func newCachingDialer(resolver *dnscache.Resolver) *cachingDialer {
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &cachingDialer{resolver: resolver, dial: dialer.DialContext}
}

// defaultDialer is shared by every client so the Octopus instance, GitHub and the
// model endpoint are each looked up once per TTL.
func defaultDialer() *cachingDialer {
	sharedDialerOnce.Do(func() {
		dnsCacheMu.Lock()
		ttl := dnsCacheTTL
		dnsCacheMu.Unlock()

		log.Info().Dur("ttl", ttl).Msg("Initializing DNS resolver cache")
		sharedDialer = newCachingDialer(&dnscache.Resolver{})
		go sharedDialer.refreshEvery(ttl)
	})
	return sharedDialer
}

func (d *cachingDialer) refreshEvery(ttl time.Duration) {
	ticker := time.NewTicker(ttl)
	defer ticker.Stop()
	for range ticker.C {
		d.resolver.Refresh(true)
		log.Debug().Dur("ttl", ttl).Msg("DNS cache refreshed")
	}
}

// DialContext dials address, resolving its host through the cache.
func (d *cachingDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(address)
	if err != nil {
		return nil, err
	}
	if host == "" || net.ParseIP(host) != nil {
		return d.dial(ctx, network, address)
	}

	ips, err := d.resolver.LookupHost(ctx, host)
	if err != nil {
		return nil, err
	}
	if len(ips) == 0 {
		return nil, &net.DNSError{Err: "no IP addresses found", Name: host, IsNotFound: true}
	}

	var errs []error
	for _, ip := range ips {
		conn, err := d.dial(ctx, network, net.JoinHostPort(ip, port))
		if err == nil {
			return conn, nil
		}
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	return nil, errors.Join(errs...)
}
