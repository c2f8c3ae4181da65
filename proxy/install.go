package proxy

import (
	"errors"
	"net/http"
	"sync"
)

// ErrInstallLoop is returned when installing would make the interceptor its
// own base transport.
var ErrInstallLoop = errors.New("interceptor cannot wrap itself")

// Installation is an interceptor swapped into an *http.Client. Close puts
// the previous transport back.
type Installation struct {
	interceptor *Interceptor
	client      *http.Client
	previous    http.RoundTripper
	once        sync.Once
}

// Install routes client's calls through the interceptor. A nil client means
// http.DefaultClient. The interceptor's Base, when unset, becomes the
// client's current transport (http.DefaultTransport when nil). A second
// Install returns the existing Installation.
func (i *Interceptor) Install(client *http.Client) (*Installation, error) {
	if client == nil {
		client = http.DefaultClient
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	if i.installation != nil {
		return i.installation, nil
	}

	previous := client.Transport
	if previous == http.RoundTripper(i) {
		return nil, ErrInstallLoop
	}

	if i.base == nil {
		i.base = previous
		if i.base == nil {
			i.base = http.DefaultTransport
		}
	}

	client.Transport = i
	i.installation = &Installation{
		interceptor: i,
		client:      client,
		previous:    previous,
	}
	return i.installation, nil
}

// Installed reports whether the interceptor is currently installed.
func (i *Interceptor) Installed() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.installation != nil
}

// Close restores the client's previous transport. It is safe to call more
// than once.
func (in *Installation) Close() error {
	in.once.Do(func() {
		i := in.interceptor
		i.mu.Lock()
		defer i.mu.Unlock()

		if in.client.Transport == http.RoundTripper(i) {
			in.client.Transport = in.previous
		}
		if i.installation == in {
			i.installation = nil
		}
	})
	return nil
}
