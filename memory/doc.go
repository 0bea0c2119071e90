// Package memory provides in-process implementations of the collaborator
// interfaces the packet verifier consumes: KeyDirectory resolves node ids
// to public keys and ReplayStore remembers accepted nonces.
//
// Both are concurrency-safe. Deployments that share state across
// processes implement the same interfaces over their own storage.
package memory
