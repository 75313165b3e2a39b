// Package config loads typed configuration structs from environment
// variables, with optional .env support for local development. Results are
// cached per struct type so every package sees the same configuration.
package config
