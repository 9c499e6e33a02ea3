// Package remotestore implements a per-user, path-addressed object store with a
// remoteStorage-style API on top of a flat key-value backend that only offers
// per-key writes and tag-equality index queries.
//
// # Key Components
//
//   - Namespace: maintains synthesized directory nodes for every ancestor of a
//     stored object, prunes them on delete and answers listings through index
//     queries.
//   - Authorizer: resolves a bearer token to a ScopeGrant and decides whether a
//     request may touch a category.
//   - Service: the object access layer combining both with payload storage.
//   - Backend: the storage abstraction (objects, directory nodes, grants and
//     the FindByTag query). Implementations live under database/.
//   - BlobStore: raw storage for binary companions (filesystem, s3store).
//
// # Directory Nodes
//
// A DirectoryNode for path P exists iff at least one object or directory node
// is tagged directory = P. Writes upsert every ancestor up to the root with the
// object's timestamp. Deletes run a prune phase while ancestors are empty and
// then a refresh phase that stamps every remaining ancestor.
//
// There are no cross-key transactions. Each ancestor step is an independent
// idempotent write; a failure aborts the walk without rollback and the next
// write beneath the affected ancestors repairs them. Concurrent writers to the
// same subtree race on ancestor timestamps and the last write to land wins.
//
// # Example Usage
//
//	ns := remotestore.NewNamespace(backend)
//	svc, err := remotestore.NewService(backend, blobs, ns, remotestore.ServiceConfig{})
//
//	caller := remotestore.Caller{Owner: "jimmy", Token: token}
//	obj, err := svc.Put(ctx, caller, remotestore.PutObject{Path: "tasks/foo"}, body)
//
//	listing, err := svc.List(ctx, caller, "tasks")
package remotestore
