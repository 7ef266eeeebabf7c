// Package ingestion provides pipeline orchestration for loading mail into the
// document store.
//
// The Pipeline type runs one ingestion per query window:
//   - Search the mailbox and follow every result page
//   - Fetch each message and normalize its body into a document
//   - Fetch, stage and normalize its allow-listed attachments into passages
//   - Write the message's documents to the store as one batch
//
// Messages run sequentially unless WithMessageConcurrency is given. Failures
// confined to one message body, attachment or file become skips in the Report;
// search, fetch and store failures abort the run. Documents written before an
// abort or timeout stay written.
package ingestion
