// Package main hosts the zxing CLI.
//
// The Cobra command tree decodes image files through a zxing session, which
// starts or reuses a zxingd decoder server behind the scenes, and exposes a
// few operational helpers: server status, dependency checks and config
// scaffolding. Configuration and logger setup live in commandContext so
// subcommands only deal with their own output.
package main
