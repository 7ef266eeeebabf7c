// Package imap implements mail.Session for IMAP mailboxes using go-imap v2.
//
// Queries produced by mail.BuildQuery are translated into SEARCH criteria
// (SINCE, BEFORE, TEXT). Message ids are UIDs in the selected mailbox.
package imap
