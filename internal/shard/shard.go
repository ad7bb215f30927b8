// Package shard provides hash-distributed partition keys for DynamoDB tables.
package shard

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// UniqueConstraintPK computes a hash-distributed partition key for a unique constraint.
// Scope is the owner the value must be unique within (a parent reference, or
// the entity type for root entities). Each constraint lands on its own
// partition, so no single owner becomes a hot key.
func UniqueConstraintPK(scope, entityType, field, value string) string {
	data := fmt.Sprintf("%s#%s#%s#%s", scope, entityType, field, value)
	h := sha256.Sum256([]byte(data))
	return hex.EncodeToString(h[:16]) // 128-bit hash as hex
}
