// Package mail adapts mailbox providers to the ingestion pipeline.
//
// A Session is the provider capability (list, get, fetch attachment). Source
// wraps a Session with query construction, pagination, de-duplication, and
// concurrent attachment download. Provider implementations live in the gmail
// and imap subpackages; mock holds an in-memory Session for tests.
package mail
