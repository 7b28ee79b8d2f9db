// Package models defines the core domain models for the Secret Santa API.
//
// # Models
//
//   - User: account that owns groups
//   - Group: a gift exchange, owns participants and assignment history
//   - Participant: member of a group, with an optional set of allowed receivers
//   - AssignmentRecord: one giver -> receiver pair for a group and year
//   - AssignmentRun: the atomic set of records produced by one assignment run
//   - GroupSnapshot: consistent view of a group used by the assignment engine
//
// # Design Principles
//
//  1. **IDs are canonical**: relationships use participant IDs; names are resolved
//     only when rendering responses
//  2. **Avoid circular references**: use IDs instead of pointers between models
//  3. **Unix timestamps**: all times are stored as Unix seconds
package models
