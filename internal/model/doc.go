package model

// Package model contains the domain value types shared across the
// application: broadcast metadata, stream variants, progress events,
// and background download task state.
