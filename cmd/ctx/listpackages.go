package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wenkaifan0720/ctx/internal/config"
	"github.com/wenkaifan0720/ctx/internal/discovery"
)

var listPackagesCmd = &cobra.Command{
	Use:   "list-packages [path]",
	Short: "Print discovered packages",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runListPackages,
}

func runListPackages(cmd *cobra.Command, args []string) error {
	root := flagProject
	if len(args) == 1 {
		root = args[0]
	}

	cfg, err := config.Load(root)
	if err != nil {
		return err
	}

	markers := make([]discovery.Marker, 0, len(cfg.Bindings))
	for _, b := range cfg.Bindings {
		markers = append(markers, discovery.Marker{FileName: b.MarkerFile, Language: b.Language})
	}

	packages, err := discovery.Discover(root, discovery.Options{Markers: markers})
	if err != nil {
		return err
	}

	if flagFormat == "json" {
		out, err := json.MarshalIndent(packages, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	for _, pkg := range packages {
		fmt.Printf("%s\t%s\n", pkg.Name, pkg.Path)
	}
	return nil
}
