// Package services holds cross-cutting helpers shared by pipeline
// components: the error taxonomy with its classification markers, and
// context decoration for run-scoped identifiers.
package services
