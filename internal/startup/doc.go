// Package startup handles application initialization: configuration loading
// from environment variables, directory validation, and the structured
// startup/shutdown logging that frames the service lifecycle.
package startup
