// Package executor runs task graphs on a fixed pool of workers.
//
// Each worker owns a FIFO ready queue and a mailbox. The mailbox is the only
// structure other goroutines touch: submissions and post-batches land there
// under the worker's lock, and the worker folds its mailbox into the local
// queue whenever the queue runs dry. Everything else a worker does — popping
// tasks, executing closures, staging newly ready dependents — is single
// owner and lock free.
//
// Flushing a pending submission at the end of each task execution is the one
// cross-worker publication point; a task is visible to another worker only
// after the edge that readied it has fully retired.
//
// Workers never block except in three places: idle sleep on the mailbox
// condition, the tuned back-off while polling a lone unsatisfied wait task,
// and whatever a user closure does internally.
package executor
