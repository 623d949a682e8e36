package dispatcher

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/valyala/fasthttp"
)

func TestPoolRunsTasks(t *testing.T) {
	p := NewPool(4, 64)

	var n int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		p.Do(func() {
			atomic.AddInt32(&n, 1)
			wg.Done()
		})
	}
	wg.Wait()
	if atomic.LoadInt32(&n) != 50 {
		t.Fatalf("ran %d tasks, want 50", n)
	}
	p.Close()
}

func TestPoolCloseDrainsQueue(t *testing.T) {
	p := NewPool(1, 64)

	var n int32
	for i := 0; i < 20; i++ {
		p.Do(func() { atomic.AddInt32(&n, 1) })
	}
	p.Close()
	if atomic.LoadInt32(&n) != 20 {
		t.Fatalf("Close should drain the queue, ran %d of 20", n)
	}

	// Submissions after close are silently dropped, not panics.
	p.Do(func() { atomic.AddInt32(&n, 100) })
	if atomic.LoadInt32(&n) != 20 {
		t.Fatal("task ran after Close")
	}
}

func TestRateLimitMonitor(t *testing.T) {
	rlm := NewRateLimitMonitor()

	if !rlm.CanExecute("ban", "g1") {
		t.Fatal("unknown bucket should allow execution")
	}

	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)
	resp.Header.Set("X-RateLimit-Remaining", "0")
	resp.Header.Set("X-RateLimit-Limit", "5")
	resp.Header.Set("X-RateLimit-Reset", "9999999999")

	rlm.UpdateFromResponse(resp, "ban", "g1")
	if rlm.CanExecute("ban", "g1") {
		t.Fatal("exhausted bucket should block until reset")
	}
	if !rlm.CanExecute("ban", "g2") {
		t.Fatal("another guild's bucket must not be affected")
	}
	if !rlm.CanExecute("kick", "g1") {
		t.Fatal("another route's bucket must not be affected")
	}

	b := rlm.Bucket("ban", "g1")
	if b == nil || b.Limit != 5 || b.Remaining != 0 {
		t.Fatalf("bucket = %+v, want limit 5 remaining 0", b)
	}
}

func TestRateLimitExpiredBucketAllows(t *testing.T) {
	rlm := NewRateLimitMonitor()

	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)
	resp.Header.Set("X-RateLimit-Remaining", "0")
	resp.Header.Set("X-RateLimit-Reset", "1") // long past

	rlm.UpdateFromResponse(resp, "ban", "g1")
	if !rlm.CanExecute("ban", "g1") {
		t.Fatal("a bucket past its reset time should allow execution")
	}
}

func TestFastBanExecutor(t *testing.T) {
	var gotMethod, gotPath, gotAuth, gotReason string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotReason = r.Header.Get("X-Audit-Log-Reason")
		w.Header().Set("X-RateLimit-Remaining", "4")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	fbe := NewFastBanExecutor(NewHTTPPool(1), NewRateLimitMonitor(), "testtoken", srv.URL)

	elapsed, err := fbe.ExecuteBan("123", "456", "nuke response", 0)
	if err != nil {
		t.Fatalf("ExecuteBan: %v", err)
	}
	if elapsed <= 0 {
		t.Error("elapsed time should be positive")
	}
	if gotMethod != http.MethodPut || gotPath != "/guilds/123/bans/456" {
		t.Errorf("request = %s %s, want PUT /guilds/123/bans/456", gotMethod, gotPath)
	}
	if gotAuth != "Bot testtoken" {
		t.Errorf("auth header = %q", gotAuth)
	}
	if gotReason != "nuke response" {
		t.Errorf("audit reason = %q", gotReason)
	}

	if err := fbe.ExecuteKick("123", "456", "x"); err != nil {
		t.Fatalf("ExecuteKick: %v", err)
	}
	if gotMethod != http.MethodDelete || gotPath != "/guilds/123/members/456" {
		t.Errorf("request = %s %s, want DELETE /guilds/123/members/456", gotMethod, gotPath)
	}
}

func TestFastBanSurfacesAPIErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	fbe := NewFastBanExecutor(NewHTTPPool(1), NewRateLimitMonitor(), "t", srv.URL)
	if _, err := fbe.ExecuteBan("123", "456", "x", 0); err == nil {
		t.Fatal("a 403 should surface as an error")
	}
}

func TestFastBanHonorsRateLimit(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("X-RateLimit-Remaining", "0")
		w.Header().Set("X-RateLimit-Reset", "9999999999")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	fbe := NewFastBanExecutor(NewHTTPPool(1), NewRateLimitMonitor(), "t", srv.URL)
	if _, err := fbe.ExecuteBan("123", "456", "x", 0); err != nil {
		t.Fatalf("first ban: %v", err)
	}
	if _, err := fbe.ExecuteBan("123", "789", "x", 0); err == nil {
		t.Fatal("second ban should be refused locally while the bucket is empty")
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("API called %d times, want 1", calls)
	}
}
