package main

import (
	"context"
	"fmt"
	"os"

	"github.com/function61/gokit/logex"
	"github.com/function61/gokit/osutil"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	app := &cobra.Command{
		Use:     os.Args[0],
		Short:   "Deploys Compose stacks to Docker Swarm through the Portainer API",
		Version: version,
	}

	app.PersistentFlags().StringVar(&conn.Url, "url", "", "Portainer base URL (e.g. https://portainer:9443)")
	app.PersistentFlags().StringVarP(&conn.Username, "user", "u", "", "Portainer username")
	app.PersistentFlags().StringVarP(&conn.Password, "password", "p", "", "Portainer password")
	app.PersistentFlags().BoolVar(&conn.Insecure, "insecure", false, "Skip TLS certificate verification")
	app.PersistentFlags().StringVar(&conn.Endpoint, "endpoint", "", "Endpoint name to target (default: first Docker/Swarm endpoint)")

	commands := []*cobra.Command{
		endpointsEntry(),
		listEntry(),
		deployEntry(),
		deleteEntry(),
	}

	for _, cmd := range commands {
		app.AddCommand(cmd)
	}

	if err := app.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// cancelled on SIGINT/SIGTERM, so in-flight polling aborts cleanly
func rootContext() context.Context {
	return osutil.CancelOnInterruptOrTerminate(logex.StandardLogger())
}
