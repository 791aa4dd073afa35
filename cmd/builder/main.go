// Command builder drives the execution core over a set of target
// textproto files: it resolves configuration, opens the caches, adds
// each target to a fresh build graph, and runs the scheduler to
// completion. Grounded on cmd/distri/distri.go's funcmain/main split
// (error formatting, interruptible context, exit code), trimmed to a
// single verb since CLI rendering and the DSL/verb dispatch layer are
// out of scope here.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/distr1/builder/internal/config"
	"github.com/distr1/builder/internal/graph"
	"github.com/distr1/builder/internal/oninterrupt"
	"github.com/distr1/builder/internal/services"
	"github.com/distr1/builder/pb"
)

func funcmain() error {
	fs := flag.NewFlagSet("builder", flag.ContinueOnError)
	debug := fs.Bool("debug", false, "format error messages with additional detail")
	cfg, err := config.Load(fs, os.Args[1:])
	if err != nil {
		return err
	}

	targetFiles := fs.Args()
	if len(targetFiles) == 0 {
		return fmt.Errorf("usage: builder [-flags] <target.textproto>...")
	}

	ctx := oninterrupt.Context()

	svc, err := services.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer svc.Close()
	oninterrupt.Register(func() { svc.Close() })

	nodes := make(map[string]*graph.BuildNode, len(targetFiles))
	for _, path := range targetFiles {
		target, err := pb.ReadTargetFile(path)
		if err != nil {
			return fmt.Errorf("reading target %s: %w", path, err)
		}
		nodes[target.GetId()] = svc.Graph.AddNode(target)
	}

	for id, n := range nodes {
		for _, depID := range n.Target.GetDeps() {
			dep, ok := nodes[depID]
			if !ok {
				return fmt.Errorf("target %s depends on unknown target %s", id, depID)
			}
			if err := svc.Graph.AddEdge(n, dep); err != nil {
				if cerr, ok := err.(*graph.CycleError); ok {
					fmt.Fprintln(os.Stderr, cerr)
					os.Exit(2)
				}
				return fmt.Errorf("wiring dependency %s -> %s: %w", id, depID, err)
			}
		}
	}

	if err := svc.Scheduler.Run(ctx); err != nil {
		if *debug {
			return fmt.Errorf("build: %+v", err)
		}
		return fmt.Errorf("build: %v", err)
	}

	return nil
}

func main() {
	if err := funcmain(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
