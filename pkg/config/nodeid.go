package config

import (
	"hash/fnv"

	"github.com/denisbrodbeck/machineid"
	"github.com/golang/glog"

	"github.com/robotalks/panel.go/pkg/l0/comm"
)

// FallbackNodeID is used when the machine ID is not available.
const FallbackNodeID = 1

// machineID is replaced in tests.
var machineID = func() (string, error) {
	return machineid.ProtectedID("panel")
}

// DefaultNodeID derives a stable node ID from the machine ID.
func DefaultNodeID() uint16 {
	id, err := machineID()
	if err != nil || id == "" {
		glog.V(1).Infof("config: machine id unavailable: %v", err)
		return FallbackNodeID
	}
	return NodeIDFromString(id)
}

// NodeIDFromString hashes s into the node ID space.
func NodeIDFromString(s string) uint16 {
	h := fnv.New32a()
	h.Write([]byte(s))
	return uint16(h.Sum32() & comm.MaxNodeID)
}
