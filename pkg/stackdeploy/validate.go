package stackdeploy

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/function61/portstack/pkg/portainerclient"
)

// fixed-interval polling on purpose: validation windows are short and the API
// load at this call rate is negligible, so backoff would only add complexity
const DefaultPollInterval = 5 * time.Second

// ServiceLister is satisfied by *portainerclient.Client.
type ServiceLister interface {
	StackServices(ctx context.Context, endpointId int, stackName string) ([]portainerclient.Service, error)
}

type Validator struct {
	Services ServiceLister
	Interval time.Duration // DefaultPollInterval if zero
	Progress *log.Logger   // optional per-poll status lines
}

type ServiceHealth struct {
	Name    string
	Global  bool // one task per node, no replica count
	Desired int  // 0 for global services
	Running int
	Healthy bool
}

func (h ServiceHealth) Status() string {
	scale := fmt.Sprintf("%d/%d", h.Running, h.Desired)
	if h.Global {
		scale = fmt.Sprintf("%d (global)", h.Running)
	}

	if h.Healthy {
		return scale + " ok"
	}

	return scale + " starting"
}

type Report struct {
	Healthy  bool
	Services []ServiceHealth
	Elapsed  time.Duration
}

// Wait polls the stack's services until every one of them runs at its desired
// scale, or timeout passes. An unconverged stack yields a Healthy=false report,
// not an error - the mutation itself already succeeded. Errors are reserved for
// API failures and context cancellation, so an embedding process can abort the
// loop cleanly.
func (v *Validator) Wait(ctx context.Context, endpointId int, stackName string, timeout time.Duration) (*Report, error) {
	interval := v.Interval
	if interval == 0 {
		interval = DefaultPollInterval
	}

	started := time.Now()

	for {
		services, err := v.Services.StackServices(ctx, endpointId, stackName)
		if err != nil {
			return nil, err
		}

		report := &Report{Elapsed: time.Since(started)}

		if len(services) == 0 {
			// service objects have not propagated yet
			logf(v.Progress, "waiting for services of %s to appear", stackName)
		} else {
			report.Healthy = true

			for _, service := range services {
				health := classify(service)
				if !health.Healthy {
					report.Healthy = false
				}

				report.Services = append(report.Services, health)

				logf(v.Progress, "%s: %s", health.Name, health.Status())
			}

			// converged - no sleeping needed
			if report.Healthy {
				return report, nil
			}
		}

		if report.Elapsed >= timeout {
			return report, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}
	}
}

func classify(service portainerclient.Service) ServiceHealth {
	running := 0
	if service.ServiceStatus != nil {
		running = service.ServiceStatus.RunningTasks
	}

	if replicated := service.Spec.Mode.Replicated; replicated != nil {
		desired := 0
		if replicated.Replicas != nil {
			desired = *replicated.Replicas
		}

		return ServiceHealth{
			Name:    service.Spec.Name,
			Desired: desired,
			Running: running,
			Healthy: running >= desired,
		}
	}

	// global mode: desired count is implicit (one per node), so anything
	// running counts as healthy
	return ServiceHealth{
		Name:    service.Spec.Name,
		Global:  true,
		Running: running,
		Healthy: running > 0,
	}
}
