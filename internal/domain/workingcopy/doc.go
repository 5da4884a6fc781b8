// Package workingcopy contains the domain types of the update step: the local
// clone being checked (WorkingCopy) and the result of checking it (Outcome).
package workingcopy
