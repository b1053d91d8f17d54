package config

import (
	"os"
	"strconv"
	"sync"
)

// ContainerEnvVar forces container detection on or off ("true"/"false").
const ContainerEnvVar = "SQLAGENT_IN_CONTAINER"

// hostGateway reaches services published on the container host.
const hostGateway = "host.docker.internal"

var containerMarkers = []string{"/.dockerenv", "/run/.containerenv"}

var inContainer = sync.OnceValue(func() bool {
	if v, err := strconv.ParseBool(os.Getenv(ContainerEnvVar)); err == nil {
		return v
	}
	for _, marker := range containerMarkers {
		if _, err := os.Stat(marker); err == nil {
			return true
		}
	}
	return false
})

// IsRunningInDocker reports whether the process runs inside a Docker or Podman
// container. The answer is computed once.
func IsRunningInDocker() bool {
	return inContainer()
}

// ResolveHostForDocker rewrites loopback datasource hosts to the host gateway
// when running in a container, so a database on the developer's machine stays
// reachable. Other hosts pass through.
func ResolveHostForDocker(host string) string {
	return resolveHost(host, IsRunningInDocker())
}

func resolveHost(host string, containerized bool) string {
	if !containerized {
		return host
	}
	switch host {
	case "localhost", "127.0.0.1", "::1":
		return hostGateway
	}
	return host
}
