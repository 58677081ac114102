package rag

import "strconv"

// PageNumber estimates the 1-based page a chunk came from, assuming chunks are
// spread evenly over the document.
func PageNumber(index, chunkCount, totalPages int) int {
	if totalPages <= 0 {
		totalPages = 1
	}
	if chunkCount <= 0 || index < 0 {
		return 1
	}
	page := index*totalPages/chunkCount + 1
	if page > totalPages {
		page = totalPages
	}
	return page
}

// ChunkID identifies the index-th chunk of a file inside a collection.
func ChunkID(filename string, index int) string {
	return filename + "_" + strconv.Itoa(index)
}
