//go:build !linux

package framework

func pinToCPU(cpu int) error {
	return nil
}
