// Package store defines the persistence interfaces consumed by the
// service layer, together with the sentinel errors shared by all store
// implementations.
package store
