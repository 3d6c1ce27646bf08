// Package cache implements the disk-backed tag cache store. Entry payloads
// live at StoragePath/cache/<ns>/<hash>.cache and are indexed by relative
// symlinks under StoragePath/tags/<ns>/<type>/<id>/. The store exposes
// read/write primitives guarded by advisory file locks (shared reads,
// exclusive single-flight writes), lazy mtime-based expiration, tag-driven
// invalidation, and the sweep operations that reclaim space without a
// metadata database. Higher layers depend on this package instead of
// duplicating filesystem logic.
package cache
