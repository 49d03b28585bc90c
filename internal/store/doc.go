// Package store keeps story sessions in process memory for the lifetime of
// a generation run. Active stories live in a plain map; finished stories
// move to a size- and age-bounded LRU so results stay queryable for a while
// without growing without bound. All access is safe for concurrent use.
package store
