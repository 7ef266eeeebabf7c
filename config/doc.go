// Package config loads mailqa settings from an optional YAML file with
// MAILQA_* environment overrides. Every key has a default, so an empty
// configuration runs against Gmail and a local OpenAI-compatible endpoint.
//
// Environment variable names are the upper-cased key path with dots replaced
// by underscores: qa.top_k is MAILQA_QA_TOP_K.
package config
