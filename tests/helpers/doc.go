// Package helpers holds the in-memory step registry, the step runners and the
// docker broker used by the integration tests.
package helpers
