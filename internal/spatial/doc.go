// Package spatial accelerates overlap queries for a packing run. It owns the
// arena of placed disks (a single growable slice) and the membership
// structures that point into it by integer index.
//
// A Grid partitions a square into R×R cells. Disks smaller than half a cell
// width are filed under the cell holding their centre; larger disks go on a
// short "big" list that every candidate is tested against. A Linear index is
// a plain list, used in one dimension where disk counts stay small.
package spatial
