package config

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// RouteConfig represents a route configuration in routes.yaml
type RouteConfig struct {
	Routes []Route `yaml:"routes"`
}

// Route represents a single API route
type Route struct {
	Path        string           `yaml:"path"`
	Methods     []string         `yaml:"methods"`
	Upstream    string           `yaml:"upstream"`
	StripPrefix bool             `yaml:"strip_prefix"`
	Timeout     int              `yaml:"timeout"`
	Response    *StaticResponse  `yaml:"response"`
	Headers     *HeaderTransform `yaml:"headers"`
	Cors        CorsSetting      `yaml:"cors"`
}

// HeaderTransform edits request headers before the handler runs and
// response headers before CORS decoration sees them
type HeaderTransform struct {
	Request  map[string]string `yaml:"request"`
	Response map[string]string `yaml:"response"`
	Remove   []string          `yaml:"remove"`
}

// StaticResponse is a fixed response served by the gateway itself
type StaticResponse struct {
	Status  int               `yaml:"status"`
	Body    string            `yaml:"body"`
	Headers map[string]string `yaml:"headers"`
}

// defaultMethods is used when a route lists none. OPTIONS is left out so the
// preflight route can be synthesized.
var defaultMethods = []string{"GET", "HEAD", "POST", "PUT", "PATCH", "DELETE"}

// LoadRoutes loads route configurations from a YAML file
func LoadRoutes(path string) (*RouteConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load routes config: %w", err)
	}
	return ParseRoutes(data)
}

// ParseRoutes parses and validates route configurations from YAML bytes
func ParseRoutes(data []byte) (*RouteConfig, error) {
	var routeConfig RouteConfig
	if err := yaml.Unmarshal(replaceEnvVars(data), &routeConfig); err != nil {
		return nil, fmt.Errorf("failed to parse routes config: %w", err)
	}

	for i, route := range routeConfig.Routes {
		if route.Path == "" {
			return nil, fmt.Errorf("route at index %d is missing 'path'", i)
		}
		if !strings.HasPrefix(route.Path, "/") {
			return nil, fmt.Errorf("route at index %d: path %q must start with '/'", i, route.Path)
		}
		if route.Upstream == "" && route.Response == nil {
			return nil, fmt.Errorf("route at index %d needs either 'upstream' or 'response'", i)
		}
		if route.Upstream != "" && route.Response != nil {
			return nil, fmt.Errorf("route at index %d cannot have both 'upstream' and 'response'", i)
		}
		if len(route.Methods) == 0 {
			routeConfig.Routes[i].Methods = append([]string(nil), defaultMethods...)
		} else {
			for j, method := range route.Methods {
				routeConfig.Routes[i].Methods[j] = strings.ToUpper(strings.TrimSpace(method))
			}
		}
		if route.Upstream != "" && route.Timeout == 0 {
			// Default timeout of 30 seconds
			routeConfig.Routes[i].Timeout = 30
		}
		if route.Response != nil && route.Response.Status == 0 {
			routeConfig.Routes[i].Response.Status = http.StatusOK
		}
	}

	return &routeConfig, nil
}
