// Package records defines the member collections and the Store through which
// the account engine reads and writes them.
//
// Every document embeds [Meta] (id, version, timestamps) and implements
// [Document]. Owned documents also implement [Owned], naming the field that
// holds their owner's id: "user" for rows owned by a user, "album" for
// photos and "post" for comments. The ownership graph is exposed as a
// [store.Registry] by [Registry] and drives both cascade order and orphan
// protection.
//
// Two implementations of [Store] exist: [DynamoStore] on top of package store,
// and the in-memory store in records/memstore. Both run BeforeSave hooks only
// on Create and Save, never on UpdateByID, so a password assigned through a
// patch would be persisted unhashed. Patches naming protected fields are
// rejected with [ErrProtectedField] for that reason.
package records
