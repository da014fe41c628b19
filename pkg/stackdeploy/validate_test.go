package stackdeploy

import (
	"context"
	"testing"
	"time"

	"github.com/function61/gokit/assert"
	"github.com/function61/portstack/pkg/portainerclient"
)

func TestWaitConvergedOnFirstPoll(t *testing.T) {
	services := &fakeServices{services: []portainerclient.Service{
		replicatedService("app_web", 3, 3),
		replicatedService("app_db", 1, 1),
	}}

	// interval longer than the test could ever run: converged stacks must
	// return without sleeping at all
	validator := &Validator{Services: services, Interval: 1 * time.Minute}

	report, err := validator.Wait(context.Background(), 1, "app", 1*time.Second)

	assert.Assert(t, err == nil)
	assert.Assert(t, report.Healthy)
	assert.Assert(t, services.polls == 1)
	assert.Assert(t, len(report.Services) == 2)
}

func TestWaitTimesOutWhenNeverConverging(t *testing.T) {
	services := &fakeServices{services: []portainerclient.Service{
		replicatedService("app_web", 3, 1),
	}}

	validator := &Validator{Services: services, Interval: 5 * time.Millisecond}

	timeout := 30 * time.Millisecond
	report, err := validator.Wait(context.Background(), 1, "app", timeout)

	assert.Assert(t, err == nil)
	assert.Assert(t, !report.Healthy)
	assert.Assert(t, report.Elapsed >= timeout)
	assert.Assert(t, services.polls >= 2)
}

func TestWaitKeepsWaitingWhileServiceListEmpty(t *testing.T) {
	// service objects appear on the third poll (creation propagation lag)
	services := &fakeServices{
		servicesAfterPoll: 3,
		services: []portainerclient.Service{
			replicatedService("app_web", 2, 2),
		},
	}

	validator := &Validator{Services: services, Interval: 1 * time.Millisecond}

	report, err := validator.Wait(context.Background(), 1, "app", 1*time.Second)

	assert.Assert(t, err == nil)
	assert.Assert(t, report.Healthy)
	assert.Assert(t, services.polls == 3)
}

func TestWaitIsCancellable(t *testing.T) {
	services := &fakeServices{services: []portainerclient.Service{
		replicatedService("app_web", 3, 1),
	}}

	validator := &Validator{Services: services, Interval: 10 * time.Millisecond}

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	_, err := validator.Wait(ctx, 1, "app", 1*time.Hour)

	assert.Assert(t, err == context.Canceled)
}

func TestReplicatedClassification(t *testing.T) {
	healthy := classify(replicatedService("app_web", 3, 3))
	assert.Assert(t, healthy.Healthy)
	assert.EqualString(t, healthy.Status(), "3/3 ok")

	// running above desired (rolling update overlap) still counts as healthy
	overScaled := classify(replicatedService("app_web", 3, 4))
	assert.Assert(t, overScaled.Healthy)

	starting := classify(replicatedService("app_web", 3, 2))
	assert.Assert(t, !starting.Healthy)
	assert.EqualString(t, starting.Status(), "2/3 starting")
}

func TestGlobalClassification(t *testing.T) {
	// zero running tasks: always unhealthy
	stopped := classify(globalService("app_agent", 0))
	assert.Assert(t, !stopped.Healthy)
	assert.EqualString(t, stopped.Status(), "0 (global) starting")

	// anything running: healthy, no desired count involved
	running := classify(globalService("app_agent", 1))
	assert.Assert(t, running.Healthy)
	assert.EqualString(t, running.Status(), "1 (global) ok")
}

func TestMixedStackUnhealthyIfAnyServiceUnhealthy(t *testing.T) {
	services := &fakeServices{services: []portainerclient.Service{
		replicatedService("app_web", 2, 2),
		globalService("app_agent", 0),
	}}

	validator := &Validator{Services: services, Interval: 1 * time.Millisecond}

	report, err := validator.Wait(context.Background(), 1, "app", 0)

	assert.Assert(t, err == nil)
	assert.Assert(t, !report.Healthy)
	assert.Assert(t, report.Services[0].Healthy)
	assert.Assert(t, !report.Services[1].Healthy)
}

type fakeServices struct {
	services          []portainerclient.Service
	servicesAfterPoll int // polls before this return an empty list
	polls             int
}

func (f *fakeServices) StackServices(ctx context.Context, endpointId int, stackName string) ([]portainerclient.Service, error) {
	f.polls++

	if f.polls < f.servicesAfterPoll {
		return []portainerclient.Service{}, nil
	}

	return f.services, nil
}

func replicatedService(name string, desired int, running int) portainerclient.Service {
	service := portainerclient.Service{}
	service.Spec.Name = name
	service.Spec.Mode.Replicated = &struct{ Replicas *int }{Replicas: &desired}
	service.ServiceStatus = &struct {
		RunningTasks int
		DesiredTasks int
	}{RunningTasks: running, DesiredTasks: desired}

	return service
}

func globalService(name string, running int) portainerclient.Service {
	service := portainerclient.Service{}
	service.Spec.Name = name
	service.Spec.Mode.Global = &struct{}{}
	service.ServiceStatus = &struct {
		RunningTasks int
		DesiredTasks int
	}{RunningTasks: running}

	return service
}
