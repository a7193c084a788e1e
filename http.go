package launcher

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/starius/api2"
)

func route(s Service, handler, httpMethod string) api2.Route {
	return api2.Route{
		Method:  httpMethod,
		Path:    fmt.Sprintf("/v1/launcher/%s", strings.ToLower(handler)),
		Handler: api2.Method(&s, handler),
		Transport: &api2.JsonTransport{
			Errors: map[string]error{
				"Error": Error{},
			},
		},
	}
}

func GetRoutes(s Service) []api2.Route {
	return []api2.Route{
		route(s, "QuoteFees", http.MethodGet),
		route(s, "PrepareLaunch", http.MethodPost),
		route(s, "SubmitLaunch", http.MethodPost),
		route(s, "LaunchStatus", http.MethodGet),
		route(s, "History", http.MethodGet),
		route(s, "WithheldFees", http.MethodGet),
		route(s, "PrepareClaim", http.MethodPost),
		route(s, "SubmitClaim", http.MethodPost),
	}
}
