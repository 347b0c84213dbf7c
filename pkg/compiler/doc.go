// Package compiler turns the declarations held by the registries into an
// execution plan.
//
// Compilation runs in three passes:
//
//  1. Validate: every handle a task references must name an existing version
//     of the current generation, and the bookkeeping on both sides of each
//     edge must agree.
//  2. Cull: tasks whose outputs nobody observes are removed. A task is kept
//     when it declares no outputs at all (a pure side-effect task), writes a
//     retained resource, or produces a version that a surviving task reads or
//     overwrites. Removing a task releases its own inputs, so culling
//     propagates upstream until it reaches a fixed point. Under the
//     KeepUnreadCreators policy a task that creates any resource is kept too.
//  3. Order: surviving tasks are sorted topologically along producer→reader,
//     producer→overwriter and reader→overwriter edges. Ties are broken by
//     declaration order, so a fixed declaration sequence always yields the
//     same plan. Each surviving resource gets the plan index where it must be
//     realized and the index after which it may be released.
package compiler
