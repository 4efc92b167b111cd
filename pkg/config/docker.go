package config

import (
	"os"
	"sync"
)

// containerMarkers are files container runtimes create at the root of the
// container filesystem: Docker's /.dockerenv and Podman's /run/.containerenv.
var containerMarkers = []string{"/.dockerenv", "/run/.containerenv"}

var (
	isDockerOnce   sync.Once
	isDockerResult bool
)

// IsRunningInDocker returns true if the process runs inside a container.
// The result is cached after the first call.
func IsRunningInDocker() bool {
	isDockerOnce.Do(func() {
		for _, marker := range containerMarkers {
			if _, err := os.Stat(marker); err == nil {
				isDockerResult = true
				return
			}
		}
	})
	return isDockerResult
}

// ResolveHostForDocker returns the address to dial for a database host.
// Inside a container a loopback host means the machine running the
// container, reachable as host.docker.internal. Other hosts are returned
// unchanged.
func ResolveHostForDocker(host string) string {
	if !IsRunningInDocker() {
		return host
	}

	switch host {
	case "localhost", "127.0.0.1", "::1":
		return "host.docker.internal"
	}
	return host
}
