package portainerclient

// Endpoint types as Portainer reports them. Only directly attached Docker
// hosts and agent-managed Swarm environments are deploy targets for us.
const (
	EndpointTypeDocker     = 1
	EndpointTypeSwarmAgent = 2
)

type EnvPair struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type Endpoint struct {
	Id     int
	Name   string
	Type   int
	Status int
}

type Stack struct {
	Id         int
	Name       string
	Type       int
	Status     int
	EndpointID int
	Env        []EnvPair
}

// Service is the slice of Docker's service JSON that convergence checking
// needs. ServiceStatus is only present when the listing asks for it
// (status=true).
type Service struct {
	ID   string
	Spec struct {
		Name string
		Mode struct {
			Replicated *struct {
				Replicas *int
			}
			Global *struct{}
		}
	}
	ServiceStatus *struct {
		RunningTasks int
		DesiredTasks int
	}
}
