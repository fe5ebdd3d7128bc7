package main

//go-build: CGO_ENABLED=0

import (
	"flag"

	"github.com/golang/glog"

	"github.com/robotalks/panel.go/pkg/config"
	"github.com/robotalks/panel.go/pkg/framework"
	"github.com/robotalks/panel.go/pkg/node"
)

func init() {
	config.SetupFlags()
}

func main() {
	flag.Parse()
	defer glog.Flush()

	cfg := config.NewConfig()
	if err := cfg.Load(flag.CommandLine); err != nil {
		glog.Exit(err)
	}
	r := framework.NewRunner().HandleSignals()
	n, err := node.New(r.Context, cfg)
	if err != nil {
		glog.Exit(err)
	}
	glog.Infof("node %d on %s", cfg.Node, cfg.Transport)
	r.Go(framework.NamedRun("node", framework.RunFunc(n.Run)))
	if err := r.Wait(); err != nil {
		glog.Exit(err)
	}
}
