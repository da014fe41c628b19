package main

import (
	"context"
	"fmt"

	"github.com/function61/gokit/ezhttp"
	"github.com/function61/gokit/osutil"
	"github.com/scylladb/termtables"
	"github.com/spf13/cobra"
)

func endpointsEntry() *cobra.Command {
	return &cobra.Command{
		Use:   "endpoints",
		Short: "Lists Portainer endpoints (environments)",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			osutil.ExitIfError(listEndpoints(rootContext()))
		},
	}
}

func listEndpoints(ctx context.Context) error {
	portainer, _, err := makeAuthenticatedClient(ctx)
	if err != nil {
		return err
	}

	reqCtx, cancel := context.WithTimeout(ctx, ezhttp.DefaultTimeout10s)
	defer cancel()

	endpoints, err := portainer.ListEndpoints(reqCtx)
	if err != nil {
		return err
	}

	tbl := termtables.CreateTable()
	tbl.AddHeaders("Id", "Name", "Type")

	for _, endpoint := range endpoints {
		tbl.AddRow(endpoint.Id, endpoint.Name, endpointTypeName(endpoint.Type))
	}

	fmt.Println(tbl.Render())

	return nil
}

func endpointTypeName(endpointType int) string {
	switch endpointType {
	case 1:
		return "docker"
	case 2:
		return "swarm (agent)"
	case 3:
		return "azure aci"
	case 4:
		return "edge agent"
	default:
		return fmt.Sprintf("unknown (%d)", endpointType)
	}
}
