// Package memory is a single-process implementation of every store interface.
//
// All records live behind one RWMutex, so conditional updates are atomic.
// It backs tests and single-node deployments; multi-process deployments use
// storage/postgres.
package memory
