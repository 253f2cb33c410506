// Package runstore keeps the history of facade calls (one row per
// Screenshot, ExtractHTML, RunActions or ExtractStructured call) in the
// runs table created by internal/migration. Store implements
// browser.RunRecorder and is read back by `pageflow history`.
package runstore
