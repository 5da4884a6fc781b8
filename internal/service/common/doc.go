// Package common holds helpers shared by several services.
//
// It defines the error taxonomy every stage reports through and a process
// scan that spots other live bootstrapper instances.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
