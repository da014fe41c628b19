package stackdeploy

import (
	"errors"
	"testing"

	"github.com/function61/gokit/assert"
	"github.com/function61/portstack/pkg/portainerclient"
)

func TestResolveEndpointByName(t *testing.T) {
	endpointId, err := ResolveEndpoint(dummyEndpoints(), "staging")

	assert.Assert(t, err == nil)
	assert.Assert(t, endpointId == 2)
}

func TestResolveEndpointByNameNotFound(t *testing.T) {
	_, err := ResolveEndpoint(dummyEndpoints(), "doesnotexist")

	assert.Assert(t, errors.Is(err, ErrEndpointNotFound))
	assert.EqualString(t, err.Error(), "endpoint not found: doesnotexist")
}

func TestResolveEndpointDefault(t *testing.T) {
	// first endpoint is Azure ACI - not a deploy target, so "prod" (Swarm) wins
	endpointId, err := ResolveEndpoint(dummyEndpoints(), "")

	assert.Assert(t, err == nil)
	assert.Assert(t, endpointId == 1)

	// same snapshot, same answer
	endpointIdAgain, _ := ResolveEndpoint(dummyEndpoints(), "")
	assert.Assert(t, endpointIdAgain == 1)
}

func TestResolveEndpointNoneSuitable(t *testing.T) {
	_, err := ResolveEndpoint([]portainerclient.Endpoint{}, "")
	assert.Assert(t, errors.Is(err, ErrNoSuitableEndpoint))

	_, err = ResolveEndpoint([]portainerclient.Endpoint{
		{Id: 3, Name: "aci", Type: 3},
	}, "")
	assert.Assert(t, errors.Is(err, ErrNoSuitableEndpoint))
}

func dummyEndpoints() []portainerclient.Endpoint {
	return []portainerclient.Endpoint{
		{Id: 3, Name: "aci", Type: 3},
		{Id: 1, Name: "prod", Type: portainerclient.EndpointTypeSwarmAgent},
		{Id: 2, Name: "staging", Type: portainerclient.EndpointTypeDocker},
	}
}
