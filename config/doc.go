// Package config loads FlowCanvas configuration from defaults, an
// optional YAML file and environment variable overrides, in that
// order. Environment keys are derived from the env struct tags, joined
// with underscores under the loader prefix, e.g.
// FLOWCANVAS_SERVER_HTTP_PORT.
package config
