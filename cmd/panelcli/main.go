package main

import (
	"github.com/robotalks/panel.go/pkg/host/sh"
)

//go-build: CGO_ENABLED=0

func main() {
	sh.Main()
}
