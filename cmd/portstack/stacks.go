package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/ioutil"
	"os"
	"time"

	"github.com/function61/gokit/envvar"
	"github.com/function61/gokit/ezhttp"
	"github.com/function61/gokit/logex"
	"github.com/function61/gokit/osutil"
	"github.com/function61/portstack/pkg/portainerclient"
	"github.com/function61/portstack/pkg/stackdeploy"
	"github.com/scylladb/termtables"
	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/spf13/cobra"
)

func listEntry() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Lists stacks",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			osutil.ExitIfError(listStacks(rootContext()))
		},
	}
}

func listStacks(ctx context.Context) error {
	portainer, _, err := makeAuthenticatedClient(ctx)
	if err != nil {
		return err
	}

	reqCtx, cancel := context.WithTimeout(ctx, ezhttp.DefaultTimeout10s)
	defer cancel()

	stacks, err := portainer.ListStacks(reqCtx)
	if err != nil {
		return err
	}

	tbl := termtables.CreateTable()
	tbl.AddHeaders("Id", "Name", "Type", "Status", "Endpoint")

	for _, stack := range stacks {
		tbl.AddRow(
			stack.Id,
			stack.Name,
			stackTypeName(stack.Type),
			stackStatusName(stack.Status),
			stack.EndpointID)
	}

	fmt.Println(tbl.Render())
	fmt.Printf("total: %d stacks\n", len(stacks))

	return nil
}

func deployEntry() *cobra.Command {
	composeFile := ""
	envs := []string{}
	dry := false
	noValidate := false
	timeoutSeconds := 120

	cmd := &cobra.Command{
		Use:   "deploy <stackName>",
		Short: "Deploys a stack (creates if missing, updates if present)",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			osutil.ExitIfError(deploy(
				rootContext(),
				args[0],
				composeFile,
				envs,
				dry,
				noValidate,
				time.Duration(timeoutSeconds)*time.Second))
		},
	}

	cmd.Flags().StringVarP(&composeFile, "compose-file", "f", composeFile, "Path to the Compose file to deploy")
	cmd.Flags().StringArrayVarP(&envs, "env", "e", envs, "Stack environment variable (KEY=VALUE, repeatable)")
	cmd.Flags().BoolVarP(&dry, "dry", "d", dry, "Just show the diff - do not mutate anything")
	cmd.Flags().BoolVar(&noValidate, "no-validate", noValidate, "Skip waiting for the services to converge")
	cmd.Flags().IntVar(&timeoutSeconds, "timeout", timeoutSeconds, "Convergence wait timeout, in seconds")

	return cmd
}

func deploy(
	ctx context.Context,
	stackName string,
	composeFile string,
	envSerialized []string,
	dry bool,
	noValidate bool,
	validateTimeout time.Duration,
) error {
	if composeFile == "" {
		return errors.New("--compose-file is required")
	}

	stackFile, err := ioutil.ReadFile(composeFile)
	if err != nil {
		return err
	}

	env, err := parseEnvPairs(envSerialized)
	if err != nil {
		return err
	}

	portainer, conf, err := makeAuthenticatedClient(ctx)
	if err != nil {
		return err
	}

	rootLogger := logex.StandardLogger()

	outcome, err := stackdeploy.Deploy(ctx, portainer, stackName, string(stackFile), stackdeploy.Options{
		EndpointName: conf.Endpoint,
		Env:          env,
		DryRun:       dry,
		Preview:      printDiff,
		Progress:     logex.Prefix("deploy", rootLogger),
	})
	if err != nil {
		return err
	}

	if dry {
		return nil
	}

	if outcome.Created {
		fmt.Printf("created stack %s (id %d)\n", outcome.Stack.Name, outcome.Stack.Id)
	} else {
		fmt.Printf("updated stack %s (id %d)\n", outcome.Stack.Name, outcome.Stack.Id)
	}

	if noValidate {
		return nil
	}

	validator := &stackdeploy.Validator{
		Services: portainer,
		Progress: logex.Prefix("validate", rootLogger),
	}

	report, err := validator.Wait(ctx, outcome.EndpointID, stackName, validateTimeout)
	if err != nil {
		return err
	}

	printValidationReport(report)

	if !report.Healthy {
		return fmt.Errorf("services of %s did not converge within %s", stackName, validateTimeout)
	}

	return nil
}

func deleteEntry() *cobra.Command {
	force := false

	cmd := &cobra.Command{
		Use:   "delete <stackName>",
		Short: "Deletes a stack",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			osutil.ExitIfError(deleteStack(rootContext(), args[0], force))
		},
	}

	cmd.Flags().BoolVarP(&force, "yes", "y", force, "Skip the confirmation prompt")

	return cmd
}

func deleteStack(ctx context.Context, stackName string, force bool) error {
	portainer, conf, err := makeAuthenticatedClient(ctx)
	if err != nil {
		return err
	}

	reqCtx, cancel := context.WithTimeout(ctx, ezhttp.DefaultTimeout10s)
	defer cancel()

	endpoints, err := portainer.ListEndpoints(reqCtx)
	if err != nil {
		return err
	}

	endpointId, err := stackdeploy.ResolveEndpoint(endpoints, conf.Endpoint)
	if err != nil {
		return err
	}

	stacks, err := portainer.ListStacks(reqCtx)
	if err != nil {
		return err
	}

	stack := stackdeploy.FindStack(stacks, stackName, endpointId)
	if stack == nil {
		return fmt.Errorf("stack to delete not found: %s", stackName)
	}

	if !force {
		fmt.Printf("delete stack %s (id %d) y/n: ", stack.Name, stack.Id)

		line, _, err := bufio.NewReader(os.Stdin).ReadLine()
		if err != nil {
			return err
		}

		if string(line) != "y" {
			return errors.New("delete not acked")
		}
	}

	return portainer.DeleteStack(ctx, stack.Id, endpointId)
}

func parseEnvPairs(serialized []string) ([]portainerclient.EnvPair, error) {
	// order is preserved; duplicate names pass through as-is and the remote
	// system decides their precedence
	pairs := []portainerclient.EnvPair{}
	for _, envSerialized := range serialized {
		key, value := envvar.Parse(envSerialized)
		if key == "" {
			return nil, fmt.Errorf("invalid format for ENV variable: %s", envSerialized)
		}

		pairs = append(pairs, portainerclient.EnvPair{Name: key, Value: value})
	}

	return pairs, nil
}

func printDiff(previous string, updated string) {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(previous, updated, false)
	diffs = dmp.DiffCleanupMerge(diffs)

	fmt.Println(dmp.DiffPrettyText(diffs))
}

func printValidationReport(report *stackdeploy.Report) {
	tbl := termtables.CreateTable()
	tbl.AddHeaders("Service", "Replicas", "Status")

	for _, service := range report.Services {
		replicas := fmt.Sprintf("%d/%d", service.Running, service.Desired)
		if service.Global {
			replicas = fmt.Sprintf("%d (global)", service.Running)
		}

		status := "ok"
		if !service.Healthy {
			status = "not converged"
		}

		tbl.AddRow(service.Name, replicas, status)
	}

	fmt.Println(tbl.Render())
	fmt.Printf("elapsed: %s\n", report.Elapsed)
}

func stackTypeName(stackType int) string {
	switch stackType {
	case 1:
		return "swarm"
	case 2:
		return "compose"
	default:
		return fmt.Sprintf("unknown (%d)", stackType)
	}
}

func stackStatusName(status int) string {
	if status == 1 {
		return "active"
	}

	return "inactive"
}
