package platform

// Package platform contains filesystem and naming helpers: filename
// sanitization, default artifact naming, and permlink extraction from
// VOD URLs.
