// Package paging defines the shared data model of the paging engine: load
// parameters, loaded pages, visible entries, load states and the ordering
// capability used for ids and keys.
//
// Ids and keys are opaque type parameters. The engine never assumes they are
// integers; every comparison or distance goes through an Ordering value:
//
//	ids := paging.Numeric[int]{}
//	ids.Compare(3, 7)  // -1
//	ids.Distance(3, 7) // 4
//
// Cursor-style keys can be ordered with OrderingFunc.
package paging
