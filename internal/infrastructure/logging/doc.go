// Package logging provides the structured logger shared by every
// automata component.
//
// It wraps log/slog. Every entry carries the service name and build
// version; components add their own "component" attribute through
// Component so log lines can be filtered per subsystem.
//
// Configuration comes from the logging section of config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// *Logger satisfies the small Logger interfaces declared by the mqtt,
// automation, source and api packages, so it is passed to them directly.
//
// Never log secrets, tokens or webhook bodies.
package logging
