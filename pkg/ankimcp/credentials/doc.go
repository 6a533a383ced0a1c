// Package credentials persists the single tunnel credential record of the
// current user, either as an owner-only JSON file or in the OS keychain.
package credentials
