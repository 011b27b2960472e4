// Package config loads dgram CLI settings from YAML files.
//
// A file is a flat map of flag names in snake_case, optionally with one
// section per subcommand whose keys take precedence for that command:
//
//	log_level: info
//	metrics_addr: ":9100"
//	multicast:
//	  group: 224.0.1.1
//	  ttl: 1
//	unicast:
//	  address: 10.0.0.174
//	  interval: 2s
//
// Values set on the command line always win over the file.
package config

import (
	"fmt"
	"io"
	"strings"

	"github.com/alecthomas/kong"
	"go.yaml.in/yaml/v2"
)

// YAML is a kong.ConfigurationLoader reading the format described in the
// package documentation. Use it with kong.Configuration and a
// kong.ConfigFlag field.
func YAML(r io.Reader) (kong.Resolver, error) {
	values, err := decode(r)
	if err != nil {
		return nil, err
	}

	var f kong.ResolverFunc = func(ctx *kong.Context, parent *kong.Path, flag *kong.Flag) (any, error) {
		key := Key(flag.Name)

		if parent != nil && parent.Command != nil {
			if section, ok := values[parent.Command.Name].(map[string]any); ok {
				if v, ok := section[key]; ok {
					return v, nil
				}
			}
		}
		if v, ok := values[key]; ok {
			if _, isSection := v.(map[string]any); isSection {
				return nil, nil
			}
			return v, nil
		}
		return nil, nil
	}

	return f, nil
}

// Key converts a flag name ("metrics-addr") to its file key ("metrics_addr").
func Key(flagName string) string {
	return strings.ReplaceAll(flagName, "-", "_")
}

func decode(r io.Reader) (map[string]any, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	values := make(map[string]any, len(doc))
	for k, v := range doc {
		values[Key(k)] = normalize(v)
	}
	return values, nil
}

// normalize turns yaml.v2's map[interface{}]interface{} sections into
// map[string]any with snake_case keys.
func normalize(v any) any {
	m, ok := v.(map[interface{}]interface{})
	if !ok {
		return v
	}
	out := make(map[string]any, len(m))
	for k, inner := range m {
		out[Key(fmt.Sprint(k))] = normalize(inner)
	}
	return out
}
