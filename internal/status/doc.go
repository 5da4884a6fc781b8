// Package status prints the short colored lines the operator reads while the
// bootstrapper runs. Colors follow fatih/color and are dropped automatically
// when the output is not a terminal.
package status
