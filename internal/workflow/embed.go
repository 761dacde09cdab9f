package workflow

import "embed"

// builtinTemplates embeds the built-in role templates used by the planner.
//
//go:embed templates/*
var builtinTemplates embed.FS
