package validator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsBlockedIP(t *testing.T) {
	blockedIPs := []string{
		"127.0.0.1", "127.0.0.2", "::1",
		"10.0.0.1", "172.16.0.1", "172.31.255.255", "192.168.1.1", "100.64.0.1", "fd00::1",
		"169.254.169.254", "fe80::1",
		"0.0.0.0",
	}
	for _, ip := range blockedIPs {
		assert.True(t, IsBlockedIP(ip), ip)
	}

	for _, ip := range []string{"8.8.8.8", "93.184.216.34", "2606:4700:4700::1111", "172.32.0.1", "slide.jpg"} {
		assert.False(t, IsBlockedIP(ip), ip)
	}
}

func TestValidateHTTPURI(t *testing.T) {
	ctx := context.Background()

	assert.NoError(t, validateHTTPURI(ctx, "https://example.com/slides/intro.jpg", dns))
	assert.NoError(t, validateHTTPURI(ctx, "https://93.184.216.34:8443/clip.mp4", dns))

	rejected := map[string]string{
		"https://127.0.0.1/a.jpg":                  "localhost",
		"http://[::1]/a.jpg":                       "localhost",
		"http://10.0.0.1/a.jpg":                    "private network",
		"http://internal.corp/a.jpg":               "private network",
		"http://169.254.169.254/latest/meta-data/": "link-local",
		"http://nowhere.invalid/a.jpg":             "failed to resolve",
		"s3://bucket/a.jpg":                        "expected http",
		"http:///a.jpg":                            "no host",
	}
	for uri, want := range rejected {
		assert.ErrorContains(t, validateHTTPURI(ctx, uri, dns), want, uri)
	}
}
