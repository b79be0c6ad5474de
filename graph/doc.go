// Package graph defines the computation-graph model that kestrel executes:
// tensor specs and values, the captured graph itself, input-schema
// fingerprints used as plan-cache keys, and compiled execution plans.
//
// A Graph is a flat list of named nodes connected by value names. Inputs are
// kept in an ordered map because input position is meaningful to backends.
// Plans are built per execution mode: a forward schedule for inference, and
// a forward schedule plus a reversed gradient schedule for training.
package graph
