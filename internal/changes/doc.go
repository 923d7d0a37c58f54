// Package changes applies proposed file edits to a project under backup
// protection and reverts them on demand.
//
// The flow is:
//
//  1. A producer (see internal/llm) yields a PlanResult. Only the Parsed
//     variant can be handed to Service.ApplyChanges.
//  2. Applier validates every path, snapshots the current file into the
//     BackupStore, then writes the new content. Descriptors are processed
//     strictly in order; one failure never blocks the rest unless the
//     all-or-nothing policy is configured.
//  3. Reverter restores snapshots newest-first (all, last N, or by file)
//     and drops each entry once its restore succeeded.
//  4. RetentionPolicy keeps the store bounded; it runs inside
//     BackupStore.Create before the new entry is inserted.
//
// The backup directory (default .iter8_backups/) holds one JSON record per
// entry and is owned exclusively by BackupStore.
package changes
