package hls

// Package hls parses HLS master and media playlists into structured
// variant and segment descriptors. It is pure text processing: no I/O.
