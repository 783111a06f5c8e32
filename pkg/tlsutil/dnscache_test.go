package tlsutil

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/rs/dnscache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLookup struct {
	hosts   map[string][]string
	lookups int
}

func (f *fakeLookup) LookupHost(_ context.Context, host string) ([]string, error) {
	f.lookups++
	ips, ok := f.hosts[host]
	if !ok {
		return nil, &net.DNSError{Err: "no such host", Name: host, IsNotFound: true}
	}
	return ips, nil
}

func (f *fakeLookup) LookupAddr(context.Context, string) ([]string, error) {
	return nil, nil
}

type recordingDial struct {
	refuse    map[string]bool
	addresses []string
}

func (r *recordingDial) dial(_ context.Context, _, address string) (net.Conn, error) {
	r.addresses = append(r.addresses, address)
	if r.refuse[address] {
		return nil, errors.New("connection refused")
	}
	client, server := net.Pipe()
	server.Close()
	return client, nil
}

func newTestDialer(lookup *fakeLookup, dial *recordingDial) *cachingDialer {
	d := newCachingDialer(&dnscache.Resolver{Resolver: lookup})
	d.dial = dial.dial
	return d
}

func TestCachingDialerFallsBackToNextAddress(t *testing.T) {
	lookup := &fakeLookup{hosts: map[string][]string{"octopus.example": {"10.0.0.1", "10.0.0.2"}}}
	dial := &recordingDial{refuse: map[string]bool{"10.0.0.1:443": true}}
	d := newTestDialer(lookup, dial)

	conn, err := d.DialContext(context.Background(), "tcp", "octopus.example:443")
	require.NoError(t, err)
	conn.Close()

	assert.Equal(t, []string{"10.0.0.1:443", "10.0.0.2:443"}, dial.addresses)
}

func TestCachingDialerReportsEveryFailure(t *testing.T) {
	lookup := &fakeLookup{hosts: map[string][]string{"octopus.example": {"10.0.0.1", "10.0.0.2"}}}
	dial := &recordingDial{refuse: map[string]bool{"10.0.0.1:443": true, "10.0.0.2:443": true}}
	d := newTestDialer(lookup, dial)

	_, err := d.DialContext(context.Background(), "tcp", "octopus.example:443")
	require.Error(t, err)
	assert.Len(t, dial.addresses, 2)
}

func TestCachingDialerCachesLookups(t *testing.T) {
	lookup := &fakeLookup{hosts: map[string][]string{"octopus.example": {"10.0.0.1"}}}
	d := newTestDialer(lookup, &recordingDial{})

	for i := 0; i < 3; i++ {
		conn, err := d.DialContext(context.Background(), "tcp", "octopus.example:443")
		require.NoError(t, err)
		conn.Close()
	}
	assert.Equal(t, 1, lookup.lookups)
}

func TestCachingDialerSkipsLookupForIPLiterals(t *testing.T) {
	lookup := &fakeLookup{}
	dial := &recordingDial{}
	d := newTestDialer(lookup, dial)

	conn, err := d.DialContext(context.Background(), "tcp", "127.0.0.1:8080")
	require.NoError(t, err)
	conn.Close()

	assert.Zero(t, lookup.lookups)
	assert.Equal(t, []string{"127.0.0.1:8080"}, dial.addresses)
}

func TestCachingDialerUnknownHost(t *testing.T) {
	d := newTestDialer(&fakeLookup{}, &recordingDial{})

	_, err := d.DialContext(context.Background(), "tcp", "missing.example:443")
	var dnsErr *net.DNSError
	require.ErrorAs(t, err, &dnsErr)
	assert.True(t, dnsErr.IsNotFound)
}
