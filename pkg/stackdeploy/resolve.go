package stackdeploy

import (
	"errors"
	"fmt"

	"github.com/function61/portstack/pkg/portainerclient"
)

var (
	ErrEndpointNotFound   = errors.New("endpoint not found")
	ErrNoSuitableEndpoint = errors.New("no Docker or Swarm endpoint available")
)

// ResolveEndpoint maps an optional endpoint name to its id. Without a name the
// first Docker/Swarm-capable endpoint wins - never a silent fallback when a
// name was given but not found. Pure selection over a snapshot the caller just
// fetched; no caching, so endpoint topology changes are always observed.
func ResolveEndpoint(endpoints []portainerclient.Endpoint, name string) (int, error) {
	if name != "" {
		for _, endpoint := range endpoints {
			if endpoint.Name == name {
				return endpoint.Id, nil
			}
		}

		return 0, fmt.Errorf("%w: %s", ErrEndpointNotFound, name)
	}

	for _, endpoint := range endpoints {
		if endpoint.Type == portainerclient.EndpointTypeDocker || endpoint.Type == portainerclient.EndpointTypeSwarmAgent {
			return endpoint.Id, nil
		}
	}

	return 0, ErrNoSuitableEndpoint
}
