// Package config loads the YAML description of a QoS engine: the raw
// signals, derived metrics, health rules, and decision outputs. Load
// applies defaults and validates structure; Build turns a validated
// Config into a running qos.Engine. Watch hot-reloads the file and keeps
// the previous config active when a reload fails.
package config
