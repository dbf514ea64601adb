// Package engineconfig loads a ring-stack topology from YAML and builds a
// running *engine.Database from it. Configuration is declarative rather
// than a flat list of flags, since a ring stack has real structure: bases,
// zones, store kinds, and startup indexes per ring.
package engineconfig
