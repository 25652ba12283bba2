// Package model defines the data types shared across the crawl engine.
//
// The types here form the contract between components:
//
//   - Task: a scheduled fetch, created by the processor or the seeder
//     and consumed exactly once by a fetch worker
//   - FetchResult: the outcome of one task's fetch, consumed by the
//     result processor and then discarded
//   - Resource: the validated record handed to the output sink
//   - CrawlReport: the aggregation of a whole run
//
// Design decision: model holds plain data with small convenience
// methods and no behavior that touches I/O or other packages. This
// keeps it import-cycle free; every internal package may depend on
// model, and model depends on nothing internal.
package model
