// Package triggers contains the concrete trigger step types.
//
// Each type exposes a package-level Factory that is registered in the
// catalog. Discriminators are persisted with every automation and must
// never be renamed.
package triggers
