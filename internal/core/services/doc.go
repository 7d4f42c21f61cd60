// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// Services are pure Go with no CGO. The ranking functions in search.go
// have no dependencies beyond the domain package.
package services
