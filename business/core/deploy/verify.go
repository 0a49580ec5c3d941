package deploy

import (
	"context"
	"fmt"
	"sync"

	"github.com/ardanlabs/lottery/business/data/deployments"
	"golang.org/x/sync/errgroup"
)

// explorerRequests bounds how many verifications are in flight. The free
// explorer tiers allow a handful of calls per second.
const explorerRequests = 2

// VerifyRecorded verifies the recorded deployments with the specified
// names, or every deployment on the network when no names are given. The
// result maps each contract name to its verified state. Contracts already
// marked verified are skipped. Only a failure to read or update the store
// is returned as an error.
func (d *Deployer) VerifyRecorded(ctx context.Context, names ...string) (map[string]bool, error) {
	if d.Store == nil {
		return nil, fmt.Errorf("verify: %w", deployments.ErrNotFound)
	}

	var deps []deployments.Deployment
	switch len(names) {
	case 0:
		all, err := d.Store.List(ctx, d.Network.Name)
		if err != nil {
			return nil, err
		}
		deps = all

	default:
		for _, name := range names {
			dep, err := d.Store.Get(ctx, d.Network.Name, name)
			if err != nil {
				return nil, err
			}
			deps = append(deps, dep)
		}
	}

	var mu sync.Mutex
	result := make(map[string]bool, len(deps))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(explorerRequests)

	for _, dep := range deps {
		if dep.Verified {
			d.log("deploy: %s: Already verified!", dep.ContractName)
			mu.Lock()
			result[dep.ContractName] = true
			mu.Unlock()
			continue
		}

		g.Go(func() error {
			verified := d.Verify(ctx, dep)

			mu.Lock()
			result[dep.ContractName] = verified
			mu.Unlock()

			if !verified {
				return nil
			}

			dep.Verified = true
			return d.save(ctx, dep)
		})
	}

	if err := g.Wait(); err != nil {
		return result, err
	}

	return result, nil
}
