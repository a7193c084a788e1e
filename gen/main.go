package main

import (
	"github.com/starius/api2"
	launcher "gitlab.com/atechtools/token-launcher"
	"gitlab.com/atechtools/token-launcher/registry"
)

func main() {
	api2.GenerateClient(launcher.GetRoutes)
	api2.GenerateClient(registry.GetRoutes)
	api2.GenerateOpenApiSpec(&api2.TypesGenConfig{
		OutDir: "./openapi",
		Routes: []interface{}{launcher.GetRoutes, registry.GetRoutes},
	})
}
