package download

// Package download contains the segment pipeline and the facade around
// metadata resolution, variant listing, and broadcast downloading, plus
// the background service that runs downloads off the caller's goroutine.
