// Create-vs-update deployment orchestration and post-deploy convergence
// validation for Portainer-managed stacks.
package stackdeploy

import (
	"context"
	"log"

	"github.com/function61/portstack/pkg/portainerclient"
)

// Registry is the slice of the Portainer API the orchestrator needs.
// *portainerclient.Client satisfies this.
type Registry interface {
	ListEndpoints(ctx context.Context) ([]portainerclient.Endpoint, error)
	ListStacks(ctx context.Context) ([]portainerclient.Stack, error)
	StackFile(ctx context.Context, stackId int) (string, error)
	CreateStack(ctx context.Context, name string, stackFile string, endpointId int, env []portainerclient.EnvPair) (*portainerclient.Stack, error)
	UpdateStack(ctx context.Context, stackId int, stackFile string, endpointId int, env []portainerclient.EnvPair, prune bool) (*portainerclient.Stack, error)
}

type Options struct {
	EndpointName string                        // empty = first Docker/Swarm endpoint
	Env          []portainerclient.EnvPair     // ordered, duplicates passed through as-is
	DryRun       bool                          // stop after preview, mutate nothing
	Preview      func(previous, updated string) // called before mutating; previous is empty on create
	Progress     *log.Logger
}

type Outcome struct {
	Stack      *portainerclient.Stack // nil on a dry run of the create branch
	Created    bool                   // create branch taken (false = update)
	EndpointID int
}

// Deploy creates the named stack if the endpoint doesn't have it yet, else
// updates it in place (pruning services removed from the Compose file, to
// favour convergence over leftover-resource safety).
//
// Not atomic: the stack list snapshot can go stale before the mutation runs,
// so concurrent deploys of the same name can race to create. The remote
// registry stays authoritative, and re-running deploy converges through the
// update branch - that is the intended mitigation, not locking.
func Deploy(ctx context.Context, registry Registry, stackName string, stackFile string, opts Options) (*Outcome, error) {
	endpoints, err := registry.ListEndpoints(ctx)
	if err != nil {
		return nil, err
	}

	endpointId, err := ResolveEndpoint(endpoints, opts.EndpointName)
	if err != nil {
		return nil, err
	}

	stacks, err := registry.ListStacks(ctx)
	if err != nil {
		return nil, err
	}

	existing := FindStack(stacks, stackName, endpointId)
	if existing == nil {
		logf(opts.Progress, "stack %s not found on endpoint %d - creating", stackName, endpointId)

		if opts.Preview != nil {
			opts.Preview("", stackFile)
		}

		if opts.DryRun {
			return &Outcome{Created: true, EndpointID: endpointId}, nil
		}

		stack, err := registry.CreateStack(ctx, stackName, stackFile, endpointId, opts.Env)
		if err != nil {
			return nil, err
		}

		return &Outcome{Stack: stack, Created: true, EndpointID: endpointId}, nil
	}

	logf(opts.Progress, "updating stack %s (id %d)", stackName, existing.Id)

	if opts.Preview != nil {
		previous, err := registry.StackFile(ctx, existing.Id)
		if err != nil {
			return nil, err
		}

		opts.Preview(previous, stackFile)
	}

	if opts.DryRun {
		return &Outcome{Stack: existing, EndpointID: endpointId}, nil
	}

	stack, err := registry.UpdateStack(ctx, existing.Id, stackFile, endpointId, opts.Env, true)
	if err != nil {
		return nil, err
	}

	return &Outcome{Stack: stack, EndpointID: endpointId}, nil
}

// FindStack matches on name AND endpoint - the same stack name can exist on
// multiple endpoints.
func FindStack(stacks []portainerclient.Stack, name string, endpointId int) *portainerclient.Stack {
	for _, stack := range stacks {
		if stack.Name == name && stack.EndpointID == endpointId {
			return &stack
		}
	}

	return nil
}

func logf(logger *log.Logger, format string, args ...interface{}) {
	if logger != nil {
		logger.Printf(format, args...)
	}
}
