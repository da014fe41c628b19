// Client for the parts of the Portainer API that stack deployment needs:
// authentication, endpoint listing, Swarm id lookup, stack CRUD and Docker
// service listing.
package portainerclient

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/url"
	"strings"

	"github.com/function61/gokit/ezhttp"
)

// calls other than Auth() refuse to run without a token, so a forgotten Auth()
// fails loudly instead of as a confusing 401 from the server
var ErrNotAuthenticated = errors.New("portainerclient: no auth token - call Auth() first")

type Client struct {
	baseUrl     string
	bearerToken string // set once, by Auth()
	httpClient  *http.Client
}

func New(baseUrl string, insecureSkipVerify bool) *Client {
	httpClient := http.DefaultClient
	if insecureSkipVerify {
		httpClient = &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
		}
	}

	return &Client{
		baseUrl:    strings.TrimRight(baseUrl, "/"),
		httpClient: httpClient,
	}
}

// Auth trades credentials for a JWT which every subsequent call attaches as a
// bearer token. Auth failures are final - credentials are either right or
// wrong, so no retrying here.
func (p *Client) Auth(ctx context.Context, username string, password string) error {
	type request struct {
		Username string
		Password string
	}
	type response struct {
		Jwt string `json:"jwt"`
	}

	res := response{}
	if _, err := ezhttp.Post(
		ctx,
		p.baseUrl+"/api/auth",
		ezhttp.Client(p.httpClient),
		ezhttp.SendJson(&request{Username: username, Password: password}),
		ezhttp.RespondsJson(&res, true),
	); err != nil {
		return fmt.Errorf("Auth: %w", err)
	}

	p.bearerToken = res.Jwt

	return nil
}

func (p *Client) ListEndpoints(ctx context.Context) ([]Endpoint, error) {
	if p.bearerToken == "" {
		return nil, ErrNotAuthenticated
	}

	endpoints := []Endpoint{}
	if _, err := ezhttp.Get(
		ctx,
		p.baseUrl+"/api/endpoints",
		ezhttp.Client(p.httpClient),
		ezhttp.AuthBearer(p.bearerToken),
		ezhttp.RespondsJson(&endpoints, true),
	); err != nil {
		return nil, fmt.Errorf("ListEndpoints: %w", err)
	}

	return endpoints, nil
}

// SwarmID resolves the Swarm cluster id of an endpoint. Stack creation is
// scoped to a cluster, and Portainer won't resolve this detail for us.
func (p *Client) SwarmID(ctx context.Context, endpointId int) (string, error) {
	if p.bearerToken == "" {
		return "", ErrNotAuthenticated
	}

	type response struct {
		ID string
	}

	res := response{}
	if _, err := ezhttp.Get(
		ctx,
		fmt.Sprintf("%s/api/endpoints/%d/docker/swarm", p.baseUrl, endpointId),
		ezhttp.Client(p.httpClient),
		ezhttp.AuthBearer(p.bearerToken),
		ezhttp.RespondsJson(&res, true),
	); err != nil {
		return "", fmt.Errorf("SwarmID: %w", err)
	}

	return res.ID, nil
}

func (p *Client) ListStacks(ctx context.Context) ([]Stack, error) {
	if p.bearerToken == "" {
		return nil, ErrNotAuthenticated
	}

	stacks := []Stack{}
	if _, err := ezhttp.Get(
		ctx,
		p.baseUrl+"/api/stacks",
		ezhttp.Client(p.httpClient),
		ezhttp.AuthBearer(p.bearerToken),
		ezhttp.RespondsJson(&stacks, true),
	); err != nil {
		return nil, fmt.Errorf("ListStacks: %w", err)
	}

	return stacks, nil
}

func (p *Client) GetStack(ctx context.Context, stackId int) (*Stack, error) {
	if p.bearerToken == "" {
		return nil, ErrNotAuthenticated
	}

	stack := &Stack{}
	if _, err := ezhttp.Get(
		ctx,
		fmt.Sprintf("%s/api/stacks/%d", p.baseUrl, stackId),
		ezhttp.Client(p.httpClient),
		ezhttp.AuthBearer(p.bearerToken),
		ezhttp.RespondsJson(stack, true),
	); err != nil {
		return nil, fmt.Errorf("GetStack: %d: %w", stackId, err)
	}

	return stack, nil
}

// StackFile fetches the Compose file content the stack is currently deployed
// with.
func (p *Client) StackFile(ctx context.Context, stackId int) (string, error) {
	if p.bearerToken == "" {
		return "", ErrNotAuthenticated
	}

	type response struct {
		StackFileContent string
	}

	res := response{}
	if _, err := ezhttp.Get(
		ctx,
		fmt.Sprintf("%s/api/stacks/%d/file", p.baseUrl, stackId),
		ezhttp.Client(p.httpClient),
		ezhttp.AuthBearer(p.bearerToken),
		ezhttp.RespondsJson(&res, true),
	); err != nil {
		return "", fmt.Errorf("StackFile: %d: %w", stackId, err)
	}

	return res.StackFileContent, nil
}

func (p *Client) CreateStack(
	ctx context.Context,
	name string,
	stackFile string,
	endpointId int,
	env []EnvPair,
) (*Stack, error) {
	if p.bearerToken == "" {
		return nil, ErrNotAuthenticated
	}

	swarmId, err := p.SwarmID(ctx, endpointId)
	if err != nil {
		return nil, fmt.Errorf("CreateStack: %w", err)
	}

	if env == nil {
		env = []EnvPair{}
	}

	req := struct {
		Name             string
		SwarmID          string
		StackFileContent string
		Env              []EnvPair
	}{
		Name:             name,
		SwarmID:          swarmId,
		StackFileContent: stackFile,
		Env:              env,
	}

	stack := &Stack{}
	if res, err := ezhttp.Post(
		ctx,
		fmt.Sprintf("%s/api/stacks/create/swarm/string?endpointId=%d", p.baseUrl, endpointId),
		ezhttp.Client(p.httpClient),
		ezhttp.AuthBearer(p.bearerToken),
		ezhttp.SendJson(&req),
		ezhttp.RespondsJson(stack, true),
	); err != nil {
		return nil, errorWithResponseBody("CreateStack", err, res)
	}

	return stack, nil
}

func (p *Client) UpdateStack(
	ctx context.Context,
	stackId int,
	stackFile string,
	endpointId int,
	env []EnvPair,
	prune bool,
) (*Stack, error) {
	if p.bearerToken == "" {
		return nil, ErrNotAuthenticated
	}

	if env == nil {
		env = []EnvPair{}
	}

	req := struct {
		StackFileContent string
		Env              []EnvPair
		Prune            bool
	}{
		StackFileContent: stackFile,
		Env:              env,
		Prune:            prune,
	}

	stack := &Stack{}
	if res, err := ezhttp.Put(
		ctx,
		fmt.Sprintf("%s/api/stacks/%d?endpointId=%d", p.baseUrl, stackId, endpointId),
		ezhttp.Client(p.httpClient),
		ezhttp.AuthBearer(p.bearerToken),
		ezhttp.SendJson(&req),
		ezhttp.RespondsJson(stack, true),
	); err != nil {
		return nil, errorWithResponseBody("UpdateStack", err, res)
	}

	return stack, nil
}

func (p *Client) DeleteStack(ctx context.Context, stackId int, endpointId int) error {
	if p.bearerToken == "" {
		return ErrNotAuthenticated
	}

	if res, err := ezhttp.Del(
		ctx,
		fmt.Sprintf("%s/api/stacks/%d?endpointId=%d", p.baseUrl, stackId, endpointId),
		ezhttp.Client(p.httpClient),
		ezhttp.AuthBearer(p.bearerToken),
	); err != nil {
		return errorWithResponseBody("DeleteStack", err, res)
	}

	return nil
}

// StackServices lists the Docker services labelled with the stack's namespace.
// status=true asks Docker to include the running task counts.
func (p *Client) StackServices(ctx context.Context, endpointId int, stackName string) ([]Service, error) {
	if p.bearerToken == "" {
		return nil, ErrNotAuthenticated
	}

	filters, err := json.Marshal(map[string][]string{
		"label": {"com.docker.stack.namespace=" + stackName},
	})
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("status", "true")
	params.Set("filters", string(filters))

	services := []Service{}
	if _, err := ezhttp.Get(
		ctx,
		fmt.Sprintf("%s/api/endpoints/%d/docker/services?%s", p.baseUrl, endpointId, params.Encode()),
		ezhttp.Client(p.httpClient),
		ezhttp.AuthBearer(p.bearerToken),
		ezhttp.RespondsJson(&services, true),
	); err != nil {
		return nil, fmt.Errorf("StackServices: %w", err)
	}

	return services, nil
}

// mutation failures usually carry a structured detail message in the response
// body ("stack already exists", Compose file rejection etc.) - surface it
func errorWithResponseBody(op string, err error, res *http.Response) error {
	if res != nil {
		body, _ := ioutil.ReadAll(res.Body)
		if len(body) > 0 {
			return fmt.Errorf("%s: %w: %s", op, err, body)
		}
	}

	return fmt.Errorf("%s: %w", op, err)
}
