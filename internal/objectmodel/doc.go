// Package objectmodel defines the in-memory representation of a web
// object that flows between the Database, Ring, Block, and Operator
// layers: a tagged value variant, reference types (including provisional
// IDs used during batch insert), and the minimal edit-application helper
// the storage core needs to bump a record from one version to the next.
//
// The object system that owns schemas, categories, and class resolution
// is an external collaborator; this package models only the
// shape the storage core itself must read and write.
package objectmodel
