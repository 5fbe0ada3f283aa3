package telegram

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	coreconfig "github.com/m3rciful/chatbots/core/config"
)

func middlewareNames(mws []Middleware) []string {
	var names []string
	for _, mw := range mws {
		names = append(names, mw.Name)
	}
	return names
}

func TestDefaultMiddlewares(t *testing.T) {
	cfg := &coreconfig.Config{}
	if diff := cmp.Diff([]string{"logger", "metrics", "recover"}, middlewareNames(DefaultMiddlewares(cfg, nil))); diff != "" {
		t.Fatalf("chain without rate limit (-want +got):\n%s", diff)
	}

	cfg.RateLimit.IntervalMS = 300
	cfg.RateLimit.ExcludeUpdates = []string{" Callback "}
	mws := DefaultMiddlewares(cfg, nil)
	if diff := cmp.Diff([]string{"logger", "metrics", "recover", "rate_limit"}, middlewareNames(mws)); diff != "" {
		t.Fatalf("chain with rate limit (-want +got):\n%s", diff)
	}
	for _, mw := range mws {
		if mw.Use == nil {
			t.Fatalf("middleware %s has no func", mw.Name)
		}
	}
}
