// Package cmd implements the cobra command tree for the ankimcp CLI: device
// flow login, logout, credential status, configuration and version.
package cmd
