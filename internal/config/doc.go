// Package config holds the settings of a tenderscan process. A Config is
// built once at start-up from defaults, the .tenderscan file, environment
// variables and command-line flags, in that order of precedence, and then
// passed to the components that need it.
package config
