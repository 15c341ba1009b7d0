package usecases

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/example/bookhub/internal/application/providers"
	"github.com/example/bookhub/internal/internaltypes"
	"golang.org/x/sync/errgroup"
)

type ProviderStatus struct {
	Provider string        `json:"provider"`
	Mode     string        `json:"mode"`
	OK       bool          `json:"ok"`
	Kind     string        `json:"kind,omitempty"`
	Error    string        `json:"error,omitempty"`
	Took     time.Duration `json:"took"`
}

// PingProviders pings every registered provider concurrently.
type PingProviders struct {
	Providers *providers.Registry
	Timeout   time.Duration
}

func (u PingProviders) Execute(ctx context.Context) []ProviderStatus {
	timeout := u.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	var (
		mu  sync.Mutex
		out []ProviderStatus
	)
	var g errgroup.Group
	for _, name := range u.Providers.Names() {
		g.Go(func() error {
			st := ProviderStatus{Provider: name}
			start := time.Now()
			a, err := u.Providers.Resolve(name)
			if err == nil {
				st.Mode = string(a.Mode())
				pctx, cancel := context.WithTimeout(ctx, timeout)
				err = a.Ping(pctx)
				cancel()
			}
			st.Took = time.Since(start)
			if err != nil {
				st.Kind = string(internaltypes.KindOf(err))
				st.Error = err.Error()
			} else {
				st.OK = true
			}
			mu.Lock()
			out = append(out, st)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	sort.Slice(out, func(i, j int) bool { return out[i].Provider < out[j].Provider })
	return out
}
