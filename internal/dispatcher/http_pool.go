package dispatcher

import (
	"crypto/tls"
	"sync/atomic"
	"time"

	"github.com/valyala/fasthttp"
)

// HTTPPool round-robins over a set of pre-warmed fasthttp clients so the
// ban fast path never waits on a TLS handshake mid-attack.
type HTTPPool struct {
	clients []*fasthttp.Client
	size    uint32
	index   uint32
}

func NewHTTPPool(size int) *HTTPPool {
	if size <= 0 {
		size = 2
	}

	tlsConfig := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		MaxVersion:         tls.VersionTLS13,
		ClientSessionCache: tls.NewLRUClientSessionCache(128),
	}

	clients := make([]*fasthttp.Client, size)
	for i := range clients {
		clients[i] = &fasthttp.Client{
			MaxConnsPerHost:     512,
			MaxIdleConnDuration: 180 * time.Second,
			MaxConnDuration:     0,
			ReadTimeout:         2 * time.Second,
			WriteTimeout:        2 * time.Second,
			MaxConnWaitTimeout:  500 * time.Millisecond,
			ReadBufferSize:      65536,
			WriteBufferSize:     65536,
			MaxResponseBodySize: 4 * 1024 * 1024,

			MaxIdemponentCallAttempts: 1,
			DialDualStack:             true,
			TLSConfig:                 tlsConfig,
			NoDefaultUserAgentHeader:  true,
		}
	}

	return &HTTPPool{clients: clients, size: uint32(size)}
}

func (hp *HTTPPool) GetClient() *fasthttp.Client {
	i := atomic.AddUint32(&hp.index, 1)
	return hp.clients[i%hp.size]
}

// Warmup primes the first client's connection pool against the API so
// the first real ban does not pay connection setup.
func (hp *HTTPPool) Warmup(baseURL string) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(baseURL + "/gateway")
	req.Header.SetMethod(fasthttp.MethodGet)

	for i := 0; i < 3; i++ {
		if err := hp.clients[0].DoTimeout(req, resp, 2*time.Second); err == nil {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
}
