package main

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/n9te9/go-graphql-supergraph-mesh/federation/graph"
	"github.com/n9te9/go-graphql-supergraph-mesh/gateway"
	"github.com/n9te9/go-graphql-supergraph-mesh/interpolation"
	"github.com/n9te9/go-graphql-supergraph-mesh/registry"
	"github.com/n9te9/go-graphql-supergraph-mesh/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const version = "v0.1.0"

var configPath string

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of Supergraph Mesh",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "Supergraph Mesh %s\n", version)
	},
}

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Load the supergraph and print its subgraphs",
	RunE: func(cmd *cobra.Command, args []string) error {
		option, err := gateway.LoadOption(configPath)
		if err != nil {
			return err
		}

		h, err := gateway.NewHandler(*option, interpolation.EnvironmentFromOS())
		if err != nil {
			return err
		}

		src, err := h.GetMeshSource(cmd.Context(), gateway.MeshSourceOptions{})
		if err != nil {
			return err
		}

		subgraphs := append([]*graph.SubgraphRequest(nil), src.Schema.Subgraphs()...)
		sort.Slice(subgraphs, func(i, j int) bool { return subgraphs[i].Name < subgraphs[j].Name })
		for _, sg := range subgraphs {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", sg.Name, src.Names.Lookup(sg.Name), sg.Endpoint)
		}
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Supergraph Mesh server",
	RunE: func(cmd *cobra.Command, args []string) error {
		option, err := gateway.LoadOption(configPath)
		if err != nil {
			return err
		}

		logger, err := gateway.NewLogger(option.Log)
		if err != nil {
			return err
		}
		defer logger.Sync() //nolint:errcheck

		ctx := cmd.Context()
		if option.Opentelemetry.TracingSetting.Enable {
			shutdown, err := gateway.InitTracer(ctx, *option, version)
			if err != nil {
				return err
			}
			defer shutdown(context.Background()) //nolint:errcheck
		}

		h, err := gateway.NewHandler(*option, interpolation.EnvironmentFromOS(), gateway.WithLogger(logger))
		if err != nil {
			return err
		}

		reg := registry.NewRegistry(h, gateway.MeshSourceOptions{}, logger)
		if err := reg.Reload(ctx); err != nil {
			return err
		}

		pollCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go reg.Poll(pollCtx, option.PollInterval())

		logger.Info("serving supergraph", zap.String("source", option.Source))
		return server.Run(ctx, server.NewHandler(reg, logger), option.Server.Port, option.ShutdownTimeout(), logger)
	},
}

func main() {
	rootCmd := cobra.Command{Use: "supergraph-mesh"}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "mesh.yaml", "path to the mesh configuration")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(serveCmd)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
