// Package configs provides embedded configuration templates for ragidx.
//
// How Configuration Templates Work:
//
// Templates are embedded at build time using Go's //go:embed directive.
// This ensures they are available in ALL distributions:
//   - Source builds (go install)
//   - Binary releases
//   - Homebrew installations
//
// No command in cmd/ragidx reads these templates or writes them to disk;
// they are exported for callers that want a starting config.
//
// Template files:
//   - project-config.example.yaml: Project-specific settings (paths, chunking, search, watcher)
//   - user-config.example.yaml: Machine-specific settings (embeddings provider, Ollama host)
//
// Configuration Hierarchy (see internal/config/config.go Load()):
//   1. Hardcoded defaults (internal/config/config.go NewConfig())
//   2. User config (~/.config/ragidx/config.yaml)
//   3. Project config (.ragidx.yaml)
//   4. Environment variables (RAGIDX_*)
//
// To modify templates, edit the .yaml files in this directory and rebuild.
// Changes will be embedded in the next build.
package configs

import _ "embed"

// UserConfigTemplate is the template for user/machine-level configuration.
// Created at ~/.config/ragidx/config.yaml.
// Contains: Machine-specific settings like the embeddings provider and Ollama host.
// Use case: Settings that apply to all projects on this machine.
//
//go:embed user-config.example.yaml
var UserConfigTemplate string

// ProjectConfigTemplate is the template for project-level configuration.
// Created at .ragidx.yaml in the project root.
// Contains: Project-specific settings like paths.exclude, chunking, and search weights.
// Use case: Settings that are version-controlled with the project.
//
//go:embed project-config.example.yaml
var ProjectConfigTemplate string
