// Package provisioner installs what the application needs before it can run:
// git, Miniconda, the conda environment, the working copy and its Python
// dependencies, plus the optional GPU build of the numeric library.
//
// Installing a tool ends the run with common.ErrRestartRequired because the
// new binaries are only on PATH for fresh shells.
package provisioner
