// Package bootstrap runs the loader pipeline end to end: probe the machine,
// install what is missing, keep the working copy current and start the app.
package bootstrap
