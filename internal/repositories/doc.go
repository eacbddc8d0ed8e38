// package repositories provides the sqlite persistence layer.
//
// Everything durable lives in a single kv table: the credential blob and the
// pending authorization state token are rows keyed by well-known names, which
// keeps the on-disk footprint identical for the CLI and the relay.
package repositories
