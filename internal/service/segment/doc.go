// Package segment implements the segment service: the boundary operations
// the web layer calls to list, create, update, delete, count, export and
// preview audience segments, and to generate filter groups from text.
//
// The service owns validation and transaction boundaries. Filter evaluation
// is delegated to the segmentation engine, persistence to a Repository.
package segment
